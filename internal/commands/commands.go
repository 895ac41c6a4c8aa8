// Package commands wires the bookshelf CLI.
package commands

import (
	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	ConfigFile string
	Output     string
	ShowID     bool
}

func New() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "bookshelf",
		Short:        "Bookmarks, collections and snoozes on an embedded SQLite database.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&ro.ConfigFile, "config", "",
		"Config file (default: ./bookshelf.yaml or ~/.config/bookshelf/bookshelf.yaml).")
	cmd.PersistentFlags().StringVarP(&ro.Output, "output", "o", "table",
		"Output format: table, json or yaml.")
	cmd.PersistentFlags().BoolVarP(&ro.ShowID, "show-id", "k", false,
		"Show ids in table output.")

	AddCommands(cmd, ro)
	return cmd
}

func AddCommands(topLevel *cobra.Command, ro *rootOptions) {
	addServe(topLevel, ro)
	addImport(topLevel, ro)
	addList(topLevel, ro)
	addCollections(topLevel, ro)
	addSnoozed(topLevel, ro)
	addBackup(topLevel, ro)
	addRestore(topLevel, ro)
	addVersion(topLevel)
}
