package llm

import (
	"context"
	"fmt"

	"github.com/trezcool/sciencegpt/core/llm/prompt"
)

const curriculumNCERT = "NCERT"

func (g *Gateway) ExplainConcept(ctx context.Context, topic string, grade int, subject, language string, includeExamples bool) (Response, error) {
	c := Context{
		Type:            TypeConceptExplanation,
		Topic:           topic,
		Grade:           grade,
		Subject:         subject,
		Language:        language,
		IncludeExamples: &includeExamples,
		Curriculum:      curriculumNCERT,
	}
	return g.Generate(ctx, fmt.Sprintf("Explain the concept of %s", topic), c, RequestFactual, true)
}

// QuizQuestion is the question sent for a quiz on topic. difficulty defaults to intermediate.
func QuizQuestion(topic, difficulty string) string {
	if difficulty == "" {
		difficulty = prompt.DefaultDifficulty
	}
	return fmt.Sprintf("Generate a %s quiz question about %s", difficulty, topic)
}

// GenerateQuizQuestion asks for one multiple choice question. difficulty defaults to intermediate.
func (g *Gateway) GenerateQuizQuestion(ctx context.Context, topic string, grade int, subject, difficulty string) (Response, error) {
	if difficulty == "" {
		difficulty = prompt.DefaultDifficulty
	}
	c := Context{
		Type:         TypeQuizGeneration,
		Topic:        topic,
		Grade:        grade,
		Subject:      subject,
		Difficulty:   difficulty,
		QuestionType: "multiple_choice",
		NumOptions:   4,
	}
	return g.Generate(ctx, QuizQuestion(topic, difficulty), c, RequestCreative, true)
}

// StudentProfile feeds the study suggestions.
type StudentProfile struct {
	Grade          int      `json:"grade"`
	WeakSubjects   []string `json:"weak_subjects"`
	StrongSubjects []string `json:"strong_subjects"`
	RecentTopics   []string `json:"recent_topics"`
	LearningGoals  []string `json:"learning_goals"`
}

// StudySuggestions only uses the cache for empty profiles: the cache key does not cover the subject lists.
func (g *Gateway) StudySuggestions(ctx context.Context, s StudentProfile) (Response, error) {
	c := Context{
		Type:           TypeStudySuggestions,
		Grade:          s.Grade,
		WeakSubjects:   s.WeakSubjects,
		StrongSubjects: s.StrongSubjects,
		RecentTopics:   s.RecentTopics,
		LearningGoals:  s.LearningGoals,
	}
	personalized := len(s.WeakSubjects)+len(s.StrongSubjects)+len(s.RecentTopics)+len(s.LearningGoals) > 0
	return g.Generate(ctx, "Provide personalized study suggestions", c, RequestGeneral, !personalized)
}

func (g *Gateway) ConceptMap(ctx context.Context, topic string, grade int, subject string) (Response, error) {
	c := Context{
		Type:     TypeConceptMap,
		Topic:    topic,
		Grade:    grade,
		Subject:  subject,
		Format:   "hierarchical",
		MaxNodes: prompt.DefaultMaxNodes,
	}
	return g.Generate(ctx, fmt.Sprintf("Create a concept map for %s", topic), c, RequestCreative, true)
}
