package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/core/tutor"
	"github.com/trezcool/sciencegpt/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainError maps the sentinel errors of the core packages to an HTTP status.
func domainError(err error) (int, string, bool) {
	var rlErr *llm.RateLimitError
	switch {
	case errors.Is(err, llm.ErrInvalidInput):
		return http.StatusBadRequest, errors.Cause(err).Error(), true
	case errors.Is(err, llm.ErrAllProvidersFailed):
		return http.StatusServiceUnavailable, "all LLM providers are currently unavailable, please try again later", true
	case errors.Is(err, llm.ErrNoProviders):
		return http.StatusServiceUnavailable, llm.ErrNoProviders.Error(), true
	case errors.As(err, &rlErr):
		return http.StatusTooManyRequests, rlErr.Error(), true
	case errors.Is(err, user.ErrNotFound), errors.Is(err, tutor.ErrNotFound):
		return http.StatusNotFound, errors.Cause(err).Error(), true
	}
	return 0, "", false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if c, msg, ok := domainError(err); ok {
			code, message = c, msg
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				code = http.StatusBadRequest
				message = core.TranslateValidationErrors(origErr, translator)
			case *core.ValidationError:
				if fields := origErr.FieldMap(); fields != nil {
					message = fields
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
