package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm"
)

const (
	healthCheckTimeout = 3 * time.Second

	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type (
	componentHealth struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	cacheHealth struct {
		componentHealth
		Backend string `json:"backend"`
		Enabled bool   `json:"enabled"`
	}

	HealthResponse struct {
		Status    string          `json:"status"`
		Version   string          `json:"version"`
		Timestamp time.Time       `json:"timestamp"`
		Database  componentHealth `json:"database"`
		Cache     cacheHealth     `json:"cache"`
		Providers []llm.Provider  `json:"providers"`
	}
)

type healthApi struct {
	conf    *core.Config
	db      core.DB
	cache   *cache.Cache
	gateway *llm.Gateway
}

func registerHealthAPI(e *echo.Echo, deps *Deps) {
	api := healthApi{
		conf:    deps.Conf,
		db:      deps.DB,
		cache:   deps.Cache,
		gateway: deps.Gateway,
	}
	e.GET("/health", api.health)
}

// health is unhealthy (503) when the database is down and degraded when the cache is.
func (api *healthApi) health(ctx echo.Context) error {
	resp := HealthResponse{
		Version:   api.conf.Build,
		Timestamp: time.Now().UTC(),
		Database:  componentHealth{Status: statusHealthy},
		Cache: cacheHealth{
			componentHealth: componentHealth{Status: statusHealthy},
			Backend:         api.cache.Backend(),
			Enabled:         api.cache.Enabled(),
		},
		Providers: api.gateway.Available(),
	}

	cctx, cancel := context.WithTimeout(ctx.Request().Context(), healthCheckTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := api.db.PingContext(cctx); err != nil {
			resp.Database = componentHealth{Status: statusUnhealthy, Error: err.Error()}
		}
		return nil
	})
	g.Go(func() error {
		if err := api.cache.Ping(cctx); err != nil {
			resp.Cache.componentHealth = componentHealth{Status: statusUnhealthy, Error: err.Error()}
		}
		return nil
	})
	_ = g.Wait()

	code := http.StatusOK
	switch {
	case resp.Database.Status != statusHealthy:
		resp.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	case resp.Cache.Status != statusHealthy:
		resp.Status = statusDegraded
	default:
		resp.Status = statusHealthy
	}
	return ctx.JSON(code, resp)
}
