package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		name, uname, email string
		isAdmin            bool
		grade              int
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the password and roles of an existing one. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, uname, email, pwd, isAdmin, grade)
			if err != nil {
				return err
			}
			cli.printf("user %q (%s) saved\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the username")
	cmd.Flags().StringVar(&email, "email", "", "the email")
	cmd.Flags().StringVar(&name, "name", "", "the full name (defaults to the username)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant every role")
	cmd.Flags().IntVar(&grade, "grade", user.DefaultGrade, "the student's grade (1-12)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd string, isAdmin bool, grade int) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	roles := []string{user.RoleStudent}
	if isAdmin {
		roles = user.AllRoles
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}
		if name == "" {
			name = uname
		}
		nu := user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Grade:           grade,
			Roles:           roles,
		}
		if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Create(ctx, nu)
	}

	if isAdmin {
		usr.Roles = roles
	}
	if err = cli.usrSvc.CheckUniqueness(ctx, usr.Username, email, usr); err != nil {
		return user.User{}, err
	}
	usr.Email = email
	return cli.usrSvc.SetPassword(ctx, usr, pwd)
}
