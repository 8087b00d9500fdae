package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/sciencegpt/core"
)

const orderingParam = "ordering"

// bindOrdering reads ?ordering=field,-other (a leading "-" sorts descending).
func bindOrdering(ctx echo.Context) []core.DBOrdering {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	var orderings []core.DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" {
			continue
		}
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}

// bindQueryInt returns the int query param name, or def when missing or invalid.
func bindQueryInt(ctx echo.Context, name string, def int) int {
	var v int
	if err := echo.QueryParamsBinder(ctx).Int(name, &v).BindError(); err != nil || ctx.QueryParam(name) == "" {
		return def
	}
	return v
}
