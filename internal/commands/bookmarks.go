package commands

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/bookshelf/internal/runner/bookmarks"
	"github.com/kittclouds/bookshelf/internal/store"
)

// scopeOptions select the profile and space a command works in.
type scopeOptions struct {
	ProfileID string
	SpaceID   string
}

func addScopeArgs(cmd *cobra.Command, o *scopeOptions) {
	cmd.Flags().StringVarP(&o.ProfileID, "profile", "p", "default", "Profile id.")
	cmd.Flags().StringVarP(&o.SpaceID, "space", "s", "default", "Space id.")
}

func addImport(topLevel *cobra.Command, ro *rootOptions) {
	so := &scopeOptions{}
	cmd := &cobra.Command{
		Use:   "import <bookmarks.html>",
		Short: "Import a Netscape bookmark export.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd, ro, true)
			if err != nil {
				return err
			}
			defer e.close()

			r := bookmarks.Import{
				File:      args[0],
				ProfileID: so.ProfileID,
				SpaceID:   so.SpaceID,
				Importer:  e.importer(nil),
				Printer:   e.printer,
			}
			return r.Do(cmd.Context())
		},
	}
	addScopeArgs(cmd, so)
	topLevel.AddCommand(cmd)
}

func addList(topLevel *cobra.Command, ro *rootOptions) {
	var (
		so         scopeOptions
		search     string
		labels     []string
		collection string
		trash      bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookmarks.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), cmd, ro, true)
			if err != nil {
				return err
			}
			defer e.close()

			r := bookmarks.List{
				Store: e.store,
				Filter: store.BookmarkFilter{
					ProfileID:    so.ProfileID,
					SpaceID:      so.SpaceID,
					Search:       search,
					Labels:       labels,
					CollectionID: collection,
					OnlyDeleted:  trash,
				},
				Printer: e.printer,
				ShowID:  ro.ShowID,
			}
			return r.Do(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&so.ProfileID, "profile", "p", "", "Profile id.")
	cmd.Flags().StringVarP(&so.SpaceID, "space", "s", "", "Space id; global bookmarks are always included.")
	cmd.Flags().StringVarP(&search, "query", "q", "", "Substring of the title or url.")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "Require a label (repeatable).")
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection id; lists in position order.")
	cmd.Flags().BoolVar(&trash, "trash", false, "List trashed bookmarks only.")
	topLevel.AddCommand(cmd)
}
