package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittclouds/bookshelf/internal/runner/backup"
)

func addBackup(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "backup [file]",
		Short: "Write a JSON backup of every table; stdout when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd, ro, true)
			if err != nil {
				return err
			}
			defer e.close()

			r := backup.Export{Store: e.store, Stdout: cmd.OutOrStdout(), Printer: e.printer}
			if len(args) == 1 {
				r.File = args[0]
			}
			return r.Do(cmd.Context())
		},
	}
	topLevel.AddCommand(cmd)
}

func addRestore(topLevel *cobra.Command, ro *rootOptions) {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the whole database with a JSON backup.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("restore replaces every bookmark, collection and snooze; pass --yes to continue")
			}
			e, err := openEnv(cmd.Context(), cmd, ro, true)
			if err != nil {
				return err
			}
			defer e.close()

			r := backup.Restore{Store: e.store, File: args[0], Printer: e.printer}
			return r.Do(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the restore.")
	topLevel.AddCommand(cmd)
}

func addVersion(topLevel *cobra.Command) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})
}
