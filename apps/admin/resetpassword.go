package main

import (
	"context"

	"github.com/spf13/cobra"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), uname, pwd)
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the user's username or email")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}
