// Package shared builds the dependencies used by both the API and the admin CLI.
package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/core/tutor"
	"github.com/trezcool/sciencegpt/core/user"
	emailsvc "github.com/trezcool/sciencegpt/services/email"
	llmsvc "github.com/trezcool/sciencegpt/services/llm"
	logsvc "github.com/trezcool/sciencegpt/services/logger"
	"github.com/trezcool/sciencegpt/storage/cache/memstore"
	"github.com/trezcool/sciencegpt/storage/cache/redisstore"
)

const redisConnectTimeout = 5 * time.Second

func NewLogger(conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every app validation registered on translator.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	tutor.InitValidators(validate, translator)
	return validate
}

// OpenCache opens the configured cache backend.
// With the "auto" backend, an unreachable Redis falls back to memory with a warning.
func OpenCache(ctx context.Context, conf *core.Config, logger core.Logger) (*cache.Cache, error) {
	opts := cache.Options{
		Enabled:         conf.Cache.Enabled,
		DefaultTTL:      conf.Cache.DefaultTTL,
		MaxEntries:      conf.Cache.MaxEntries,
		MaxSizeMB:       conf.Cache.MaxSizeMB,
		CleanupInterval: conf.Cache.CleanupInterval,
	}

	if conf.Cache.Backend != core.CacheBackendMemory && conf.Cache.RedisURL != "" {
		rctx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		store, err := redisstore.Open(rctx, conf.Cache.RedisURL)
		cancel()
		if err == nil {
			logger.Info("cache backend: redis")
			return cache.New(store, opts, logger), nil
		}
		if conf.Cache.Backend == core.CacheBackendRedis {
			return nil, errors.Wrap(err, "connecting to redis")
		}
		logger.Warn(fmt.Sprintf("redis unavailable, using the memory cache: %v", err), err)
	}

	store, err := memstore.New(memstore.Options{
		MaxEntries:   conf.Cache.MaxEntries,
		MaxSizeBytes: int64(conf.Cache.MaxSizeMB) * 1024 * 1024,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating memory cache")
	}
	logger.Info("cache backend: memory")
	return cache.New(store, opts, logger), nil
}

// NewGateway builds the LLM gateway over the providers that have an API key.
// Outage alerts are mailed when ALERT_EMAIL is set.
func NewGateway(
	conf *core.Config,
	c *cache.Cache,
	mailSvc core.EmailService,
	logger core.Logger,
	recorder llm.Recorder,
) (*llm.Gateway, error) {
	opts := []llm.Option{
		llm.WithCache(c),
		llm.WithLogger(logger),
		llm.WithMaxConcurrent(conf.LLM.MaxConcurrentRequests),
		llm.WithMaxRetries(conf.LLM.MaxRetries),
	}
	if conf.LLM.RequestTimeout > 0 {
		opts = append(opts, llm.WithTimeout(conf.LLM.RequestTimeout))
	}
	if recorder != nil {
		opts = append(opts, llm.WithRecorder(recorder))
	}
	if conf.AlertEmail != "" {
		alerter, err := llm.NewEmailAlerter(mailSvc, conf.AlertEmail, llm.DefaultAlertInterval, logger)
		if err != nil {
			return nil, errors.Wrap(err, "creating outage alerter")
		}
		opts = append(opts, llm.WithAlerter(alerter))
	}

	gw, err := llm.NewGateway(llmsvc.NewClients(conf), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating llm gateway")
	}
	return gw, nil
}
