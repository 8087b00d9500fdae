package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/sciencegpt/apps/api/di/dig"
	echoapi "github.com/trezcool/sciencegpt/apps/api/echo"
	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	logsvc "github.com/trezcool/sciencegpt/services/logger"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger *logsvc.RollbarLogger,
		db *sqlx.DB,
		respCache *cache.Cache,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(apiLogger)

		defer func() {
			if err := apiLogger.Close(); err != nil {
				log.Printf("closing logger: %v", err)
			}
		}()
		defer func() {
			if err := db.Close(); err != nil {
				apiLogger.Error("Failed to close database", err)
			}
		}()
		defer func() {
			if err := respCache.Close(); err != nil {
				apiLogger.Error("Failed to close cache", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start Cache Cleanup

		ctx, stopCleanup := context.WithCancel(context.Background())
		defer stopCleanup()
		go respCache.Run(ctx)

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
