package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/core/tutor"
	"github.com/trezcool/sciencegpt/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	logger   core.Logger
	db       *sqlx.DB
	validate *validator.Validate
	usrSvc   user.Service
	tutorSvc tutor.Service
	cache    *cache.Cache

	// gateway is nil when no provider is configured; gatewayErr says why.
	gateway    *llm.Gateway
	gatewayErr error

	out io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "ScienceGPT administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.cacheCmd(),
		cli.providersCmd(),
		cli.cleanupCmd(),
		cli.askCmd(),
	)
	return root
}

// run executes args (program name included).
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, a...)
}

// promptPassword reads a password without echoing it.
func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) requireGateway() (*llm.Gateway, error) {
	if cli.gateway == nil {
		if cli.gatewayErr != nil {
			return nil, cli.gatewayErr
		}
		return nil, llm.ErrNoProviders
	}
	return cli.gateway, nil
}
