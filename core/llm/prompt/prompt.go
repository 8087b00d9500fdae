// Package prompt renders the system and user prompts sent to the LLM providers.
package prompt

import (
	"embed"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// Prompt types
const (
	TypeConceptExplanation = "concept_explanation"
	TypeQuizGeneration     = "quiz_generation"
	TypeStudySuggestions   = "study_suggestions"
	TypeConceptMap         = "concept_map"
	TypeGeneral            = "general"
)

// Defaults
const (
	DefaultGrade             = 6
	DefaultSubject           = "Science"
	DefaultLanguage          = "English"
	DefaultTopic             = "General Science"
	DefaultConceptMapTopic   = "Science Topic"
	DefaultLearningObjective = "Understanding and Application"
	DefaultDifficulty        = "intermediate"
	DefaultQuestionType      = "multiple_choice"
	DefaultNumOptions        = 4
	DefaultMaxNodes          = 15
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var tmpl = template.Must(
	template.New("prompt").
		Funcs(template.FuncMap{
			"upper": strings.ToUpper,
			"join":  join,
		}).
		ParseFS(templatesFS, "templates/*.tmpl"),
)

// Params describe the tutoring situation of a prompt.
type Params struct {
	Type              string
	Grade             int
	Subject           string
	Language          string
	Topic             string
	LearningObjective string
	IncludeExamples   bool

	// quiz
	Difficulty   string
	QuestionType string
	NumOptions   int

	// concept map
	MaxNodes     int
	Hierarchical bool

	// study suggestions
	WeakSubjects   []string
	StrongSubjects []string
	RecentTopics   []string
	LearningGoals  []string
}

type view struct {
	Params
	Question        string
	GradeGuidance   string
	SubjectGuidance string
	Examples        []string
}

func (p Params) withDefaults() Params {
	if p.Grade == 0 {
		p.Grade = DefaultGrade
	}
	if p.Subject == "" {
		p.Subject = DefaultSubject
	}
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if p.LearningObjective == "" {
		p.LearningObjective = DefaultLearningObjective
	}
	if p.Difficulty == "" {
		p.Difficulty = DefaultDifficulty
	}
	if p.QuestionType == "" {
		p.QuestionType = DefaultQuestionType
	}
	if p.NumOptions <= 0 {
		p.NumOptions = DefaultNumOptions
	}
	if p.MaxNodes <= 0 {
		p.MaxNodes = DefaultMaxNodes
	}
	return p
}

func newView(question string, p Params) view {
	return view{
		Params:          p,
		Question:        question,
		GradeGuidance:   GradeGuidance(p.Grade),
		SubjectGuidance: subjectGuidance[p.Subject],
		Examples:        localExamples[p.Subject],
	}
}

// System renders the system prompt: the tutor identity followed by the task of p.Type.
// Unknown types get the general task.
func System(p Params) (string, error) {
	p = p.withDefaults()
	task := p.Type
	switch task {
	case TypeConceptExplanation, TypeQuizGeneration, TypeStudySuggestions, TypeConceptMap:
		if task == TypeConceptMap && p.Topic == "" {
			p.Topic = DefaultConceptMapTopic
		}
	default:
		task = TypeGeneral
	}

	v := newView("", p)
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, "base", v); err != nil {
		return "", errors.Wrap(err, "rendering base prompt")
	}
	b.WriteString("\n\n")
	if err := tmpl.ExecuteTemplate(&b, task, v); err != nil {
		return "", errors.Wrapf(err, "rendering %s prompt", task)
	}
	return b.String(), nil
}

// User renders the question with its educational context.
func User(question string, p Params) (string, error) {
	p = p.withDefaults()
	if p.Topic == "" {
		p.Topic = DefaultTopic
	}
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, "user", newView(question, p)); err != nil {
		return "", errors.Wrap(err, "rendering user prompt")
	}
	return b.String(), nil
}

// join joins items with ", ", or returns fallback when there are none.
func join(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
