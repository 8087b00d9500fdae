package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem(t *testing.T) {
	tests := []struct {
		name        string
		params      Params
		contains    []string
		notContains []string
	}{
		{
			name:     "general by default",
			params:   Params{},
			contains: []string{"You are ScienceGPT", "TASK: ANSWER A STUDENT", "Grade 6 Science", "Answer in English"},
		},
		{
			name:     "unknown type falls back to general",
			params:   Params{Type: "poetry", Grade: 9, Subject: "Biology"},
			contains: []string{"TASK: ANSWER A STUDENT", "Grade 9 Biology", "Biology TEACHING NOTES", "Relate structure to function"},
		},
		{
			name:   "concept explanation with examples",
			params: Params{Type: TypeConceptExplanation, Grade: 8, Subject: "Physics", IncludeExamples: true, Language: "Hindi"},
			contains: []string{
				"TASK: EXPLAIN A CONCEPT", "Grade 8 student", "Deeper concepts, problem solving",
				"Physics TEACHING NOTES", "Answer in Hindi", "ISRO missions",
			},
			notContains: []string{"Keep examples general"},
		},
		{
			name:        "concept explanation without examples",
			params:      Params{Type: TypeConceptExplanation, Grade: 13, Subject: "Chemistry"},
			contains:    []string{"GRADE 13 NOTES:\nintermediate", "Keep examples general but relatable"},
			notContains: []string{"Turmeric"},
		},
		{
			name:     "multiple choice quiz",
			params:   Params{Type: TypeQuizGeneration, Grade: 7, Subject: "Physics", Difficulty: "beginner"},
			contains: []string{"one beginner multiple_choice question", "FORMAT FOR MULTIPLE_CHOICE", "4 options", "DIFFICULTY: BEGINNER", "basic recall"},
		},
		{
			name:        "true/false advanced quiz",
			params:      Params{Type: TypeQuizGeneration, QuestionType: "true_false", Difficulty: "expert"},
			contains:    []string{"FORMAT FOR TRUE_FALSE", "plainly true or plainly false", "DIFFICULTY: EXPERT", "synthesis and evaluation"},
			notContains: []string{"options labelled"},
		},
		{
			name: "study suggestions",
			params: Params{
				Type:           TypeStudySuggestions,
				Grade:          10,
				WeakSubjects:   []string{"Chemistry"},
				StrongSubjects: []string{"Physics", "Biology"},
				RecentTopics:   []string{"Acids"},
			},
			contains:    []string{"Grade 10 student", "Strong areas: Physics, Biology", "Needs work: Chemistry", "Recently studied: Acids"},
			notContains: []string{"Goals:"},
		},
		{
			name:     "study suggestions without profile",
			params:   Params{Type: TypeStudySuggestions},
			contains: []string{"Strong areas: Not specified", "Needs work: Not specified"},
		},
		{
			name:     "concept map",
			params:   Params{Type: TypeConceptMap, Topic: "Cells", Grade: 8, Subject: "Biology", Hierarchical: true},
			contains: []string{`hierarchical concept map of "Cells"`, "Central node: Cells", "At most 15 nodes"},
		},
		{
			name:     "concept map default topic",
			params:   Params{Type: TypeConceptMap, MaxNodes: 10},
			contains: []string{`"Science Topic"`, "At most 10 nodes"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := System(tc.params)
			require.NoError(t, err)
			for _, s := range tc.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tc.notContains {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestUser(t *testing.T) {
	got, err := User("What is friction?", Params{})
	require.NoError(t, err)
	assert.Equal(t, `Student Question: What is friction?

Educational Context:
- Grade Level: 6
- Subject: Science
- Current Topic: General Science
- Learning Objective: Understanding and Application

Give a complete answer suited to the student's age that helps them learn.`, got)

	got, err = User("Why is the sky blue?", Params{Grade: 11, Subject: "Physics", Topic: "Optics", LearningObjective: "Scattering"})
	require.NoError(t, err)
	assert.Contains(t, got, "- Grade Level: 11\n- Subject: Physics\n- Current Topic: Optics\n- Learning Objective: Scattering")
}

func TestGradeGuidance(t *testing.T) {
	assert.Equal(t, "intermediate", GradeGuidance(0))
	assert.Equal(t, "intermediate", GradeGuidance(13))
	for g := 1; g <= 12; g++ {
		assert.NotEqual(t, "intermediate", GradeGuidance(g), g)
	}
}
