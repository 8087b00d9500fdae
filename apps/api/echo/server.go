package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/core/tutor"
	"github.com/trezcool/sciencegpt/core/user"
)

const rateLimitExpiresIn = 3 * time.Minute

type (
	// Deps holds what the handlers need.
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		DB         core.DB
		Validate   *validator.Validate
		Translator ut.Translator
		UserSvc    user.Service
		TutorSvc   tutor.Service
		Gateway    *llm.Gateway
		Cache      *cache.Cache
		Metrics    http.Handler // optional
	}

	Server struct {
		deps     *Deps
		app      *echo.Echo
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps *Deps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.IsTesting() {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.IsTesting()) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if n := conf.Server.RateLimitPerMinute; n > 0 {
		s.app.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(ctx echo.Context) bool { return ctx.Path() == "/health" },
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(n) / 60),
				Burst:     n,
				ExpiresIn: rateLimitExpiresIn,
			}),
		}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	registerHealthAPI(s.app, s.deps)
	if s.deps.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}

	v1 := s.app.Group("/v1")
	jwt := newJWTMiddleware(conf)

	registerUserAPI(v1, jwt, s.deps)
	registerTutorAPI(v1, jwt, s.deps)
	registerAdminAPI(v1, jwt, s.deps)
}

// Start blocks until the server stops. Errors other than a graceful stop are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the application to stop gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"message": "Welcome to " + s.deps.Conf.AppName + " API!",
		"version": s.deps.Conf.Build,
	})
}
