package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm"
)

type adminApi struct {
	gateway *llm.Gateway
	cache   *cache.Cache
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := adminApi{
		gateway: deps.Gateway,
		cache:   deps.Cache,
	}

	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.GET("/providers", api.providers)
	ag.GET("/usage", api.usage)
	ag.GET("/cache", api.cacheStats)
	ag.GET("/cache/keys", api.cacheKeys)
	ag.DELETE("/cache", api.clearCache)
}

// Handlers

func (api *adminApi) providers(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.gateway.ProviderStatus())
}

func (api *adminApi) usage(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.gateway.UsageStats(ctx.Request().Context()))
}

func (api *adminApi) cacheStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.cache.Stats(ctx.Request().Context()))
}

func (api *adminApi) cacheKeys(ctx echo.Context) error {
	keys, err := api.cache.Keys(ctx.Request().Context(), bindQueryInt(ctx, "limit", cache.DefaultKeysLimit))
	if err != nil {
		return errors.Wrap(err, "listing cache keys")
	}
	return ctx.JSON(http.StatusOK, keys)
}

func (api *adminApi) clearCache(ctx echo.Context) error {
	if !api.gateway.ClearCache(ctx.Request().Context()) {
		return errors.New("clearing cache")
	}
	return ctx.NoContent(http.StatusNoContent)
}
