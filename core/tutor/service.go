package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("chat session not found")
)

type (
	Repository interface {
		// Create stores s and increments the total_questions_asked counter of its user.
		Create(ctx context.Context, s Session) (Session, error)
		GetByID(ctx context.Context, id string) (Session, error)
		// Query returns the sessions of userID matching filter, newest first.
		Query(ctx context.Context, userID string, filter HistoryFilter) ([]Session, error)
		Update(ctx context.Context, s Session) (Session, error)
		// DeleteBefore removes the sessions created before t and returns how many were removed.
		DeleteBefore(ctx context.Context, t time.Time) (int64, error)
	}

	// Generator produces the answers. *llm.Gateway satisfies it.
	Generator interface {
		Generate(ctx context.Context, question string, c llm.Context, rt llm.RequestType, useCache bool) (llm.Response, error)
		ExplainConcept(ctx context.Context, topic string, grade int, subject, language string, includeExamples bool) (llm.Response, error)
		GenerateQuizQuestion(ctx context.Context, topic string, grade int, subject, difficulty string) (llm.Response, error)
		StudySuggestions(ctx context.Context, s llm.StudentProfile) (llm.Response, error)
		ConceptMap(ctx context.Context, topic string, grade int, subject string) (llm.Response, error)
	}

	Service interface {
		Ask(ctx context.Context, usr user.User, req AskRequest) (Answer, error)
		Explain(ctx context.Context, usr user.User, req TopicRequest) (Answer, error)
		Quiz(ctx context.Context, usr user.User, req TopicRequest) (Answer, error)
		StudySuggestions(ctx context.Context, usr user.User, req SuggestionsRequest) (Answer, error)
		ConceptMap(ctx context.Context, usr user.User, req TopicRequest) (Answer, error)
		History(ctx context.Context, userID string, filter HistoryFilter) ([]Session, error)
		RateSession(ctx context.Context, userID, id string, r Rating) (Session, error)
		// Cleanup removes the sessions older than days (DefaultRetentionDays if <= 0).
		Cleanup(ctx context.Context, days int) (int64, error)
	}

	service struct {
		repo   Repository
		gen    Generator
		logger core.Logger
		now    func() time.Time
	}
)

var _ Service = (*service)(nil)

// Answer is a generated response plus the ids it was recorded under.
// ID is empty when the exchange was not recorded.
type Answer struct {
	llm.Response
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func NewService(repo Repository, gen Generator, logger core.Logger) Service {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &service{repo: repo, gen: gen, logger: logger, now: time.Now}
}

// profile fills the blanks of grade, subject and language from the student's preferences.
func profile(usr user.User, grade int, subject, language string) (int, string, string) {
	if grade == 0 {
		grade = usr.Grade
	}
	if grade == 0 {
		grade = user.DefaultGrade
	}
	if subject == "" {
		subject = usr.PreferredSubject
	}
	if subject == "" {
		subject = user.DefaultSubject
	}
	if language == "" {
		language = usr.PreferredLanguage
	}
	if language == "" {
		language = user.DefaultLanguage
	}
	return grade, subject, language
}

// Ask answers a validated free form question and records the exchange.
func (svc *service) Ask(ctx context.Context, usr user.User, req AskRequest) (Answer, error) {
	c := req.Context
	c.Grade, c.Subject, c.Language = profile(usr, req.Grade, req.Subject, req.Language)
	rt := llm.RequestType(req.RequestType)
	if rt == "" {
		rt = llm.RequestGeneral
	}

	resp, err := svc.gen.Generate(ctx, req.Question, c, rt, req.useCache())
	if err != nil {
		return Answer{}, err
	}
	return svc.record(ctx, usr, exchange{
		sessionID: req.SessionID,
		question:  req.Question,
		grade:     c.Grade,
		subject:   c.Subject,
		language:  c.Language,
		context:   c,
		rt:        rt,
	}, resp), nil
}

func (svc *service) Explain(ctx context.Context, usr user.User, req TopicRequest) (Answer, error) {
	grade, subject, language := profile(usr, req.Grade, req.Subject, req.Language)
	examples := req.IncludeExamples == nil || *req.IncludeExamples

	resp, err := svc.gen.ExplainConcept(ctx, req.Topic, grade, subject, language, examples)
	if err != nil {
		return Answer{}, err
	}
	return svc.record(ctx, usr, exchange{
		question: fmt.Sprintf("Explain the concept of %s", req.Topic),
		grade:    grade,
		subject:  subject,
		language: language,
		context:  req,
		rt:       llm.RequestFactual,
	}, resp), nil
}

func (svc *service) Quiz(ctx context.Context, usr user.User, req TopicRequest) (Answer, error) {
	grade, subject, language := profile(usr, req.Grade, req.Subject, req.Language)

	resp, err := svc.gen.GenerateQuizQuestion(ctx, req.Topic, grade, subject, req.Difficulty)
	if err != nil {
		return Answer{}, err
	}
	return svc.record(ctx, usr, exchange{
		question: llm.QuizQuestion(req.Topic, req.Difficulty),
		grade:    grade,
		subject:  subject,
		language: language,
		context:  req,
		rt:       llm.RequestCreative,
	}, resp), nil
}

func (svc *service) StudySuggestions(ctx context.Context, usr user.User, req SuggestionsRequest) (Answer, error) {
	grade, subject, language := profile(usr, req.Grade, "", "")
	sp := llm.StudentProfile{
		Grade:          grade,
		WeakSubjects:   req.WeakSubjects,
		StrongSubjects: req.StrongSubjects,
		RecentTopics:   req.RecentTopics,
		LearningGoals:  req.LearningGoals,
	}

	resp, err := svc.gen.StudySuggestions(ctx, sp)
	if err != nil {
		return Answer{}, err
	}
	return svc.record(ctx, usr, exchange{
		question: "Provide personalized study suggestions",
		grade:    grade,
		subject:  subject,
		language: language,
		context:  sp,
		rt:       llm.RequestGeneral,
	}, resp), nil
}

func (svc *service) ConceptMap(ctx context.Context, usr user.User, req TopicRequest) (Answer, error) {
	grade, subject, language := profile(usr, req.Grade, req.Subject, req.Language)

	resp, err := svc.gen.ConceptMap(ctx, req.Topic, grade, subject)
	if err != nil {
		return Answer{}, err
	}
	return svc.record(ctx, usr, exchange{
		question: fmt.Sprintf("Create a concept map for %s", req.Topic),
		grade:    grade,
		subject:  subject,
		language: language,
		context:  req,
		rt:       llm.RequestCreative,
	}, resp), nil
}

type exchange struct {
	sessionID string
	question  string
	grade     int
	subject   string
	language  string
	context   interface{}
	rt        llm.RequestType
}

// newID returns a time ordered UUID so that sessions recorded within the same second keep their order.
func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// record persists the exchange of an authenticated user. Failures are logged, the answer is returned anyway.
func (svc *service) record(ctx context.Context, usr user.User, ex exchange, resp llm.Response) Answer {
	ans := Answer{Response: resp, SessionID: ex.sessionID}
	if usr.ID == "" {
		return ans
	}
	if ans.SessionID == "" {
		ans.SessionID = uuid.NewString()
	}

	ctxJSON, err := json.Marshal(ex.context)
	if err != nil {
		svc.logger.Error("encoding chat session context", errors.Wrap(err, "tutor.record"))
		ctxJSON = []byte("{}")
	}
	s := Session{
		ID:             newID(),
		UserID:         usr.ID,
		SessionID:      ans.SessionID,
		Subject:        ex.subject,
		Grade:          ex.grade,
		Language:       ex.language,
		Question:       ex.question,
		AIResponse:     resp.Content,
		Context:        ctxJSON,
		RequestType:    string(ex.rt),
		Provider:       string(resp.Provider),
		ModelUsed:      resp.Model,
		TokensUsed:     resp.TokensUsed,
		ResponseTimeMS: resp.ResponseTimeMS,
		Cached:         resp.Cached,
		CreatedAt:      svc.now().UTC(),
	}
	s, err = svc.repo.Create(ctx, s)
	if err != nil {
		svc.logger.Error("recording chat session", errors.Wrap(err, "tutor.record"), usr)
		return ans
	}
	ans.ID = s.ID
	return ans
}

func (svc *service) History(ctx context.Context, userID string, filter HistoryFilter) ([]Session, error) {
	filter.Clean()
	sessions, err := svc.repo.Query(ctx, userID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying chat sessions")
	}
	return sessions, nil
}

// RateSession stores the rating of a session. r is expected to be validated.
func (svc *service) RateSession(ctx context.Context, userID, id string, r Rating) (Session, error) {
	s, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.UserID != userID {
		return Session{}, ErrNotFound
	}
	s.UserRating = null.IntFrom(r.Rating)
	s.UserFeedback = null.NewString(r.Feedback, r.Feedback != "")
	return svc.repo.Update(ctx, s)
}

func (svc *service) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := svc.now().UTC().AddDate(0, 0, -days)
	n, err := svc.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "deleting old chat sessions")
	}
	svc.logger.Info(fmt.Sprintf("tutor.Cleanup: deleted %d sessions older than %d days", n, days))
	return n, nil
}
