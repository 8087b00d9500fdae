package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/trezcool/sciencegpt/apps/shared"
	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/tutor"
	"github.com/trezcool/sciencegpt/core/user"
	"github.com/trezcool/sciencegpt/storage/database"
	sqlxrepos "github.com/trezcool/sciencegpt/storage/database/sqlx"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()
	logger := shared.NewLogger(conf)
	defer func() { _ = logger.Close() }()

	ctx := context.Background()

	// set up DB
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer db.Close()

	respCache, err := shared.OpenCache(ctx, conf, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("opening cache: %v", err), err)
		return 1
	}
	defer respCache.Close()

	// set up services
	mailSvc := shared.NewEmailService(conf, logger)
	usrRepo := sqlxrepos.NewUserRepository(db)
	gw, gwErr := shared.NewGateway(conf, respCache, mailSvc, logger, nil)

	cli := commandLine{
		conf:       conf,
		logger:     logger,
		db:         db,
		validate:   shared.NewValidator(shared.NewTranslator()),
		usrSvc:     user.NewService(usrRepo, mailSvc),
		cache:      respCache,
		gateway:    gw,
		gatewayErr: gwErr,
		out:        os.Stdout,
	}
	// cleanup works without providers
	var gen tutor.Generator
	if gw != nil {
		gen = gw
	}
	cli.tutorSvc = tutor.NewService(sqlxrepos.NewChatSessionRepository(db), gen, logger)

	// start CLI
	if err = cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
