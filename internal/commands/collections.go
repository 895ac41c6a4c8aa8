package commands

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/bookshelf/internal/runner/collections"
	"github.com/kittclouds/bookshelf/internal/runner/snoozes"
)

func addCollections(topLevel *cobra.Command, ro *rootOptions) {
	var (
		profile string
		trash   bool
	)
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Show the collection tree.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), cmd, ro, true)
			if err != nil {
				return err
			}
			defer e.close()

			r := collections.List{
				Store:     e.store,
				ProfileID: profile,
				Deleted:   trash,
				Printer:   e.printer,
				ShowID:    ro.ShowID,
			}
			return r.Do(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Profile id.")
	cmd.Flags().BoolVar(&trash, "trash", false, "List trashed collections instead.")
	topLevel.AddCommand(cmd)
}

func addSnoozed(topLevel *cobra.Command, ro *rootOptions) {
	var (
		profile string
		ready   bool
	)
	cmd := &cobra.Command{
		Use:   "snoozed",
		Short: "List snoozed bookmarks and tabs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), cmd, ro, true)
			if err != nil {
				return err
			}
			defer e.close()

			r := snoozes.List{
				Store:     e.store,
				ProfileID: profile,
				Ready:     ready,
				Printer:   e.printer,
			}
			return r.Do(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Profile id.")
	cmd.Flags().BoolVar(&ready, "ready", false, "Only items that are due and not yet notified.")
	topLevel.AddCommand(cmd)
}
