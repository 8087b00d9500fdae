package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core/tutor"
	"github.com/trezcool/sciencegpt/core/user"
)

type tutorApi struct {
	svc      tutor.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerTutorAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := tutorApi{
		svc:      deps.TutorSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	tg := g.Group("/tutor", jwt)
	tg.POST("/ask", api.ask)
	tg.POST("/explain", api.topicHandler("explaining concept", api.svc.Explain))
	tg.POST("/quiz", api.topicHandler("generating quiz question", api.svc.Quiz))
	tg.POST("/study-suggestions", api.studySuggestions)
	tg.POST("/concept-map", api.topicHandler("generating concept map", api.svc.ConceptMap))
	tg.GET("/history", api.history)
	tg.POST("/history/:id/rating", api.rate)
}

// Handlers

func (api *tutorApi) ask(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data tutor.AskRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AskRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	answer, err := api.svc.Ask(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "asking question")
	}
	return ctx.JSON(http.StatusOK, answer)
}

type topicFunc func(ctx context.Context, usr user.User, req tutor.TopicRequest) (tutor.Answer, error)

// topicHandler serves the operations that take a TopicRequest.
func (api *tutorApi) topicHandler(action string, op topicFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}

		var data tutor.TopicRequest
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to TopicRequest")
		}
		if err = data.Validate(api.validate); err != nil {
			return err
		}

		answer, err := op(ctx.Request().Context(), usr, data)
		if err != nil {
			return errors.Wrap(err, action)
		}
		return ctx.JSON(http.StatusOK, answer)
	}
}

func (api *tutorApi) studySuggestions(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data tutor.SuggestionsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SuggestionsRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	answer, err := api.svc.StudySuggestions(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "generating study suggestions")
	}
	return ctx.JSON(http.StatusOK, answer)
}

func (api *tutorApi) history(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(tutor.HistoryFilter)
	if err = ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to HistoryFilter")
	}
	filter.Clean()

	sessions, err := api.svc.History(ctx.Request().Context(), usr.ID, *filter)
	if err != nil {
		return errors.Wrap(err, "querying history")
	}
	if sessions == nil {
		sessions = []tutor.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *tutorApi) rate(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data tutor.Rating
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Rating")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	session, err := api.svc.RateSession(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "rating session")
	}
	return ctx.JSON(http.StatusOK, session)
}
