package tutor

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/llm"
)

// History limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// DefaultRetentionDays is how long sessions are kept by Cleanup.
const DefaultRetentionDays = 90

// Session is one recorded tutoring exchange.
type Session struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	SessionID      string          `json:"session_id"`
	Subject        string          `json:"subject"`
	Grade          int             `json:"grade"`
	Language       string          `json:"language"`
	Question       string          `json:"question"`
	AIResponse     string          `json:"ai_response"`
	Context        json.RawMessage `json:"context"`
	RequestType    string          `json:"request_type"`
	Provider       string          `json:"provider"`
	ModelUsed      string          `json:"model_used"`
	TokensUsed     int             `json:"tokens_used"`
	ResponseTimeMS int64           `json:"response_time_ms"`
	Cached         bool            `json:"cached"`
	UserRating     null.Int        `json:"user_rating"`
	UserFeedback   null.String     `json:"user_feedback"`
	CreatedAt      time.Time       `json:"created_at"` // UTC
}

// AskRequest is a free form question from a student.
// Grade, Subject and Language default to the student's profile.
type AskRequest struct {
	Question    string      `json:"question" validate:"required,max=2000"`
	SessionID   string      `json:"session_id" validate:"omitempty,uuid"`
	Subject     string      `json:"subject" validate:"omitempty,subject"`
	Grade       int         `json:"grade" validate:"omitempty,min=1,max=12"`
	Language    string      `json:"language" validate:"omitempty,max=20"`
	RequestType string      `json:"request_type" validate:"omitempty,reqtype"`
	UseCache    *bool       `json:"use_cache"`
	Context     llm.Context `json:"context"`
}

func (ar *AskRequest) Validate(validate *validator.Validate) error {
	ar.Question = llm.SanitizeQuestion(ar.Question)
	ar.Language = core.CleanString(ar.Language)
	ar.RequestType = core.CleanString(ar.RequestType, true /* lower */)
	if err := validate.Struct(ar); err != nil {
		return err
	}
	if ar.Subject != "" {
		ar.Subject = core.NormalizeSubject(ar.Subject)
	}
	return nil
}

func (ar AskRequest) useCache() bool {
	return ar.UseCache == nil || *ar.UseCache
}

// TopicRequest feeds the explain, quiz and concept map operations.
type TopicRequest struct {
	Topic           string `json:"topic" validate:"required,max=200"`
	Subject         string `json:"subject" validate:"omitempty,subject"`
	Grade           int    `json:"grade" validate:"omitempty,min=1,max=12"`
	Language        string `json:"language" validate:"omitempty,max=20"`
	IncludeExamples *bool  `json:"include_examples"`
	Difficulty      string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
}

func (tr *TopicRequest) Validate(validate *validator.Validate) error {
	tr.Topic = core.CleanString(tr.Topic)
	tr.Language = core.CleanString(tr.Language)
	tr.Difficulty = core.CleanString(tr.Difficulty, true /* lower */)
	if err := validate.Struct(tr); err != nil {
		return err
	}
	if tr.Subject != "" {
		tr.Subject = core.NormalizeSubject(tr.Subject)
	}
	return nil
}

// SuggestionsRequest lists what the student wants the study plan to consider.
type SuggestionsRequest struct {
	Grade          int      `json:"grade" validate:"omitempty,min=1,max=12"`
	WeakSubjects   []string `json:"weak_subjects" validate:"max=10,dive,max=50"`
	StrongSubjects []string `json:"strong_subjects" validate:"max=10,dive,max=50"`
	RecentTopics   []string `json:"recent_topics" validate:"max=20,dive,max=100"`
	LearningGoals  []string `json:"learning_goals" validate:"max=10,dive,max=200"`
}

func (sr *SuggestionsRequest) Validate(validate *validator.Validate) error {
	sr.WeakSubjects = cleanList(sr.WeakSubjects)
	sr.StrongSubjects = cleanList(sr.StrongSubjects)
	sr.RecentTopics = cleanList(sr.RecentTopics)
	sr.LearningGoals = cleanList(sr.LearningGoals)
	return validate.Struct(sr)
}

func cleanList(items []string) []string {
	var out []string
	for _, it := range items {
		if it = core.CleanString(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

type HistoryFilter struct {
	Subject   string `query:"subject"`
	SessionID string `query:"session_id"`
	Limit     int    `query:"limit"`
}

// Clean normalizes the subject and clamps Limit to 1..MaxHistoryLimit.
func (hf *HistoryFilter) Clean() {
	if subj := core.NormalizeSubject(hf.Subject); subj != "" {
		hf.Subject = subj
	} else {
		hf.Subject = core.CleanString(hf.Subject)
	}
	hf.SessionID = core.CleanString(hf.SessionID)
	switch {
	case hf.Limit <= 0:
		hf.Limit = DefaultHistoryLimit
	case hf.Limit > MaxHistoryLimit:
		hf.Limit = MaxHistoryLimit
	}
}

type Rating struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Feedback string `json:"feedback" validate:"max=1000"`
}

func (r *Rating) Validate(validate *validator.Validate) error {
	r.Feedback = core.CleanText(r.Feedback)
	return validate.Struct(r)
}
