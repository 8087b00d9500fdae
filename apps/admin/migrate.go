package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/sciencegpt/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gooseRunFunc(cmd.Context(), cli.db, cli.logger, args[0], args[1:]...)
		},
	}
}
