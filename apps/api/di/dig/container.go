package dig_container

import (
	"context"
	"log"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/sciencegpt/apps/api/echo"
	"github.com/trezcool/sciencegpt/apps/shared"
	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/core/tutor"
	"github.com/trezcool/sciencegpt/core/user"
	logsvc "github.com/trezcool/sciencegpt/services/logger"
	"github.com/trezcool/sciencegpt/services/metrics"
	"github.com/trezcool/sciencegpt/storage/database"
	sqlxrepos "github.com/trezcool/sciencegpt/storage/database/sqlx"
)

const dbSetupTimeout = 30 * time.Second

// ServerParams are the dependencies of the API server.
type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	DB         core.DB
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.Service
	TutorSvc   tutor.Service
	Gateway    *llm.Gateway
	Cache      *cache.Cache
	Metrics    *metrics.Prometheus
}

func newLogger(conf *core.Config) (*logsvc.RollbarLogger, core.Logger) {
	logger := shared.NewLogger(conf)
	return logger, logger
}

func newDB(conf *core.Config) (*sqlx.DB, core.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening database")
	}
	if err = database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "migrating database")
	}
	return db, db, nil
}

func newCache(conf *core.Config, logger core.Logger) (*cache.Cache, error) {
	return shared.OpenCache(context.Background(), conf, logger)
}

func newMetrics(c *cache.Cache) *metrics.Prometheus {
	p := metrics.NewPrometheus()
	p.WatchCache(c)
	return p
}

func newGateway(
	conf *core.Config,
	c *cache.Cache,
	mailSvc core.EmailService,
	logger core.Logger,
	p *metrics.Prometheus,
) (*llm.Gateway, error) {
	return shared.NewGateway(conf, c, mailSvc, logger, p)
}

func newTutorService(repo tutor.Repository, gw *llm.Gateway, logger core.Logger) tutor.Service {
	return tutor.NewService(repo, gw, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		DB:         p.DB,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		TutorSvc:   p.TutorSvc,
		Gateway:    p.Gateway,
		Cache:      p.Cache,
		Metrics:    p.Metrics.Handler(),
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDB))
	must(c.Provide(shared.NewEmailService))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewChatSessionRepository))
	must(c.Provide(shared.NewTranslator))
	must(c.Provide(shared.NewValidator))
	must(c.Provide(newCache))
	must(c.Provide(newMetrics))
	must(c.Provide(newGateway))
	must(c.Provide(user.NewService))
	must(c.Provide(newTutorService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
