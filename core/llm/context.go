package llm

import (
	"context"
	"time"

	"github.com/trezcool/sciencegpt/core/cache"
	"github.com/trezcool/sciencegpt/core/llm/prompt"
)

// Context types
const (
	TypeConceptExplanation = prompt.TypeConceptExplanation
	TypeQuizGeneration     = prompt.TypeQuizGeneration
	TypeStudySuggestions   = prompt.TypeStudySuggestions
	TypeConceptMap         = prompt.TypeConceptMap
	TypeGeneral            = prompt.TypeGeneral
)

// Context describes the tutoring situation of a question. Zero values get defaults.
type Context struct {
	Type              string `json:"type,omitempty"`
	Topic             string `json:"topic,omitempty"`
	Grade             int    `json:"grade,omitempty"`
	Subject           string `json:"subject,omitempty"`
	Language          string `json:"language,omitempty"`
	IncludeExamples   *bool  `json:"include_examples,omitempty"` // nil means true
	LearningObjective string `json:"learning_objective,omitempty"`
	Curriculum        string `json:"curriculum,omitempty"`

	// quiz
	Difficulty   string `json:"difficulty,omitempty"`
	QuestionType string `json:"question_type,omitempty"`
	NumOptions   int    `json:"num_options,omitempty"`

	// concept map
	Format   string `json:"format,omitempty"`
	MaxNodes int    `json:"max_nodes,omitempty"`

	// study suggestions
	WeakSubjects   []string `json:"weak_subjects,omitempty"`
	StrongSubjects []string `json:"strong_subjects,omitempty"`
	RecentTopics   []string `json:"recent_topics,omitempty"`
	LearningGoals  []string `json:"learning_goals,omitempty"`
}

func (c Context) includeExamples() bool {
	return c.IncludeExamples == nil || *c.IncludeExamples
}

func (c Context) contentType() string {
	if c.Type == "" {
		return TypeGeneral
	}
	return c.Type
}

// CacheKey returns the key under which the answer to question is cached.
func (c Context) CacheKey(question string) string {
	return cache.Key(cache.KeyParams{
		Question:        question,
		Grade:           c.Grade,
		Subject:         c.Subject,
		Language:        c.Language,
		Type:            c.Type,
		IncludeExamples: c.IncludeExamples,
	})
}

func (c Context) promptParams() prompt.Params {
	return prompt.Params{
		Type:              c.contentType(),
		Grade:             c.Grade,
		Subject:           c.Subject,
		Language:          c.Language,
		Topic:             c.Topic,
		LearningObjective: c.LearningObjective,
		IncludeExamples:   c.includeExamples(),
		Difficulty:        c.Difficulty,
		QuestionType:      c.QuestionType,
		NumOptions:        c.NumOptions,
		MaxNodes:          c.MaxNodes,
		Hierarchical:      c.Format == "hierarchical",
		WeakSubjects:      c.WeakSubjects,
		StrongSubjects:    c.StrongSubjects,
		RecentTopics:      c.RecentTopics,
		LearningGoals:     c.LearningGoals,
	}
}

// Response is a generated (or cached) answer.
type Response struct {
	Content        string            `json:"content"`
	Provider       Provider          `json:"provider"`
	Model          string            `json:"model"`
	TokensUsed     int               `json:"tokens_used"`
	ResponseTimeMS int64             `json:"response_time_ms"`
	Cached         bool              `json:"cached"`
	Timestamp      time.Time         `json:"timestamp"`
	Metadata       map[string]string `json:"metadata"`
}

// Completion is what a provider returns for one call.
type Completion struct {
	Content    string
	TokensUsed int
	Metadata   map[string]string // model, finish_reason or stop_reason
}

// Client calls one provider API.
type Client interface {
	Complete(ctx context.Context, cfg ProviderConfig, system, user string) (Completion, error)
}
