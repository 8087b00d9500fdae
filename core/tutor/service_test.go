package tutor

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/core/user"
)

type memRepo struct {
	mu       sync.Mutex
	sessions map[string]Session
	asked    map[string]int
	fail     error
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: make(map[string]Session), asked: make(map[string]int)}
}

func (r *memRepo) Create(_ context.Context, s Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return Session{}, r.fail
	}
	r.sessions[s.ID] = s
	r.asked[s.UserID]++
	return s, nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *memRepo) Query(_ context.Context, userID string, filter HistoryFilter) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.UserID != userID ||
			(filter.Subject != "" && s.Subject != filter.Subject) ||
			(filter.SessionID != "" && s.SessionID != filter.SessionID) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, s Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s, nil
}

func (r *memRepo) DeleteBefore(_ context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.CreatedAt.Before(t) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

type genCall struct {
	method   string
	question string
	c        llm.Context
	rt       llm.RequestType
	useCache bool
	profile  llm.StudentProfile
}

type fakeGen struct {
	calls []genCall
	err   error
}

func (g *fakeGen) answer(call genCall) (llm.Response, error) {
	g.calls = append(g.calls, call)
	if g.err != nil {
		return llm.Response{}, g.err
	}
	return llm.Response{
		Content:        "answer to " + call.question,
		Provider:       llm.ProviderGroq,
		Model:          "llama3-8b-8192",
		TokensUsed:     42,
		ResponseTimeMS: 120,
	}, nil
}

func (g *fakeGen) Generate(_ context.Context, q string, c llm.Context, rt llm.RequestType, useCache bool) (llm.Response, error) {
	return g.answer(genCall{method: "generate", question: q, c: c, rt: rt, useCache: useCache})
}

func (g *fakeGen) ExplainConcept(_ context.Context, topic string, grade int, subject, language string, examples bool) (llm.Response, error) {
	return g.answer(genCall{method: "explain", question: topic, c: llm.Context{Grade: grade, Subject: subject, Language: language, IncludeExamples: &examples}})
}

func (g *fakeGen) GenerateQuizQuestion(_ context.Context, topic string, grade int, subject, difficulty string) (llm.Response, error) {
	return g.answer(genCall{method: "quiz", question: topic, c: llm.Context{Grade: grade, Subject: subject, Difficulty: difficulty}})
}

func (g *fakeGen) StudySuggestions(_ context.Context, s llm.StudentProfile) (llm.Response, error) {
	return g.answer(genCall{method: "suggestions", profile: s})
}

func (g *fakeGen) ConceptMap(_ context.Context, topic string, grade int, subject string) (llm.Response, error) {
	return g.answer(genCall{method: "concept_map", question: topic, c: llm.Context{Grade: grade, Subject: subject}})
}

func newValidator() *validator.Validate {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func testStudent() user.User {
	return user.User{
		ID:                uuid.NewString(),
		Username:          "asha",
		Grade:             8,
		PreferredSubject:  core.SubjectChemistry,
		PreferredLanguage: "Hindi",
		Roles:             []string{user.RoleStudent},
		IsActive:          true,
	}
}

func TestAskRequest_Validate(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name    string
		req     AskRequest
		wantErr bool
	}{
		{"ok", AskRequest{Question: "  What is   an atom? "}, false},
		{"missing question", AskRequest{Question: " \n "}, true},
		{"bad request type", AskRequest{Question: "What is an atom?", RequestType: "poetic"}, true},
		{"request type", AskRequest{Question: "What is an atom?", RequestType: "Complex"}, false},
		{"bad subject", AskRequest{Question: "What is an atom?", Subject: "History"}, true},
		{"bad grade", AskRequest{Question: "What is an atom?", Grade: 13}, true},
		{"bad session id", AskRequest{Question: "What is an atom?", SessionID: "nope"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate(validate)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	req := AskRequest{Question: "  What is   an atom? ", Subject: "physics", RequestType: "Complex"}
	require.NoError(t, req.Validate(validate))
	assert.Equal(t, "What is an atom?", req.Question)
	assert.Equal(t, core.SubjectPhysics, req.Subject)
	assert.Equal(t, "complex", req.RequestType)
}

func TestService_Ask(t *testing.T) {
	repo, gen := newMemRepo(), new(fakeGen)
	svc := NewService(repo, gen, nil)
	usr := testStudent()
	ctx := context.Background()

	ans, err := svc.Ask(ctx, usr, AskRequest{Question: "What is an atom?"})
	require.NoError(t, err)
	assert.Equal(t, "answer to What is an atom?", ans.Content)
	assert.NotEmpty(t, ans.ID)
	_, err = uuid.Parse(ans.SessionID)
	assert.NoError(t, err, "a new session gets an id")

	require.Len(t, gen.calls, 1)
	call := gen.calls[0]
	assert.Equal(t, llm.RequestGeneral, call.rt)
	assert.True(t, call.useCache)
	assert.Equal(t, 8, call.c.Grade, "defaults come from the profile")
	assert.Equal(t, core.SubjectChemistry, call.c.Subject)
	assert.Equal(t, "Hindi", call.c.Language)

	s, err := repo.GetByID(ctx, ans.ID)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, s.UserID)
	assert.Equal(t, ans.SessionID, s.SessionID)
	assert.Equal(t, "What is an atom?", s.Question)
	assert.Equal(t, ans.Content, s.AIResponse)
	assert.Equal(t, "groq", s.Provider)
	assert.Equal(t, 42, s.TokensUsed)
	assert.Equal(t, int64(120), s.ResponseTimeMS)
	assert.Equal(t, 1, repo.asked[usr.ID])

	var recorded llm.Context
	require.NoError(t, json.Unmarshal(s.Context, &recorded))
	assert.Equal(t, core.SubjectChemistry, recorded.Subject)

	// follow up in the same session, with overrides
	noCache := false
	ans2, err := svc.Ask(ctx, usr, AskRequest{
		Question:    "And a molecule?",
		SessionID:   ans.SessionID,
		Subject:     core.SubjectPhysics,
		Grade:       10,
		RequestType: "complex",
		UseCache:    &noCache,
	})
	require.NoError(t, err)
	assert.Equal(t, ans.SessionID, ans2.SessionID)
	call = gen.calls[1]
	assert.Equal(t, llm.RequestComplex, call.rt)
	assert.False(t, call.useCache)
	assert.Equal(t, 10, call.c.Grade)
	assert.Equal(t, core.SubjectPhysics, call.c.Subject)
	assert.Equal(t, 2, repo.asked[usr.ID])
}

func TestService_Ask_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("generation error", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, &fakeGen{err: llm.ErrAllProvidersFailed}, nil)
		_, err := svc.Ask(ctx, testStudent(), AskRequest{Question: "What is an atom?"})
		assert.ErrorIs(t, err, llm.ErrAllProvidersFailed)
		assert.Empty(t, repo.sessions)
	})

	t.Run("recording error", func(t *testing.T) {
		repo := newMemRepo()
		repo.fail = errors.New("db down")
		svc := NewService(repo, new(fakeGen), nil)
		ans, err := svc.Ask(ctx, testStudent(), AskRequest{Question: "What is an atom?"})
		require.NoError(t, err, "the answer is returned anyway")
		assert.NotEmpty(t, ans.Content)
		assert.Empty(t, ans.ID)
	})

	t.Run("anonymous", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, new(fakeGen), nil)
		ans, err := svc.Ask(ctx, user.User{}, AskRequest{Question: "What is an atom?"})
		require.NoError(t, err)
		assert.Empty(t, ans.ID)
		assert.Empty(t, repo.sessions)
	})
}

func TestService_Specialized(t *testing.T) {
	repo, gen := newMemRepo(), new(fakeGen)
	svc := NewService(repo, gen, nil)
	usr := testStudent()
	ctx := context.Background()
	noExamples := false

	tests := []struct {
		name     string
		run      func() (Answer, error)
		method   string
		rt       string
		question string
	}{
		{
			name:     "explain",
			run:      func() (Answer, error) { return svc.Explain(ctx, usr, TopicRequest{Topic: "Osmosis", IncludeExamples: &noExamples}) },
			method:   "explain",
			rt:       "factual",
			question: "Explain the concept of Osmosis",
		},
		{
			name:     "quiz",
			run:      func() (Answer, error) { return svc.Quiz(ctx, usr, TopicRequest{Topic: "Acids", Difficulty: "advanced"}) },
			method:   "quiz",
			rt:       "creative",
			question: "Generate a advanced quiz question about Acids",
		},
		{
			name:     "quiz default difficulty",
			run:      func() (Answer, error) { return svc.Quiz(ctx, usr, TopicRequest{Topic: "Bases"}) },
			method:   "quiz",
			rt:       "creative",
			question: "Generate a intermediate quiz question about Bases",
		},
		{
			name:     "concept map",
			run:      func() (Answer, error) { return svc.ConceptMap(ctx, usr, TopicRequest{Topic: "Cells", Grade: 9}) },
			method:   "concept_map",
			rt:       "creative",
			question: "Create a concept map for Cells",
		},
		{
			name: "study suggestions",
			run: func() (Answer, error) {
				return svc.StudySuggestions(ctx, usr, SuggestionsRequest{WeakSubjects: []string{"Physics"}})
			},
			method:   "suggestions",
			rt:       "general",
			question: "Provide personalized study suggestions",
		},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ans, err := tc.run()
			require.NoError(t, err)
			require.Len(t, gen.calls, i+1)
			assert.Equal(t, tc.method, gen.calls[i].method)

			s, err := repo.GetByID(ctx, ans.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.rt, s.RequestType)
			assert.Equal(t, tc.question, s.Question)
		})
	}

	assert.False(t, *gen.calls[0].c.IncludeExamples)
	assert.Equal(t, core.SubjectChemistry, gen.calls[0].c.Subject)
	assert.Equal(t, "advanced", gen.calls[1].c.Difficulty)
	assert.Empty(t, gen.calls[2].c.Difficulty)
	assert.Equal(t, 9, gen.calls[3].c.Grade)
	assert.Equal(t, 8, gen.calls[4].profile.Grade)
	assert.Equal(t, []string{"Physics"}, gen.calls[4].profile.WeakSubjects)
}

func TestService_History(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, new(fakeGen), nil).(*service)
	usr, other := testStudent(), testStudent()
	ctx := context.Background()

	now := time.Now()
	svc.now = func() time.Time { return now }
	first, err := svc.Ask(ctx, usr, AskRequest{Question: "What is an atom?"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		now = now.Add(time.Minute)
		_, err = svc.Ask(ctx, usr, AskRequest{Question: "What is a cell?", Subject: core.SubjectBiology})
		require.NoError(t, err)
	}
	_, err = svc.Ask(ctx, other, AskRequest{Question: "What is an atom?"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"all", HistoryFilter{}, 4},
		{"subject", HistoryFilter{Subject: "biology"}, 3},
		{"session", HistoryFilter{SessionID: first.SessionID}, 1},
		{"limit", HistoryFilter{Limit: 2}, 2},
		{"limit clamped", HistoryFilter{Limit: 1000}, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sessions, err := svc.History(ctx, usr.ID, tc.filter)
			require.NoError(t, err)
			assert.Len(t, sessions, tc.want)
			for _, s := range sessions {
				assert.Equal(t, usr.ID, s.UserID)
			}
		})
	}

	sessions, err := svc.History(ctx, usr.ID, HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, core.SubjectBiology, sessions[0].Subject, "newest first")
	assert.Equal(t, first.ID, sessions[3].ID)
}

func TestHistoryFilter_Clean(t *testing.T) {
	tests := []struct {
		in, want HistoryFilter
	}{
		{HistoryFilter{}, HistoryFilter{Limit: DefaultHistoryLimit}},
		{HistoryFilter{Limit: -3}, HistoryFilter{Limit: DefaultHistoryLimit}},
		{HistoryFilter{Limit: 101}, HistoryFilter{Limit: MaxHistoryLimit}},
		{HistoryFilter{Limit: 5, Subject: " CHEMISTRY "}, HistoryFilter{Limit: 5, Subject: core.SubjectChemistry}},
	}
	for _, tc := range tests {
		tc.in.Clean()
		assert.Equal(t, tc.want, tc.in)
	}
}

func TestService_RateSession(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, new(fakeGen), nil)
	usr := testStudent()
	ctx := context.Background()
	validate := newValidator()

	ans, err := svc.Ask(ctx, usr, AskRequest{Question: "What is an atom?"})
	require.NoError(t, err)

	bad := Rating{Rating: 6}
	assert.Error(t, bad.Validate(validate))
	bad = Rating{}
	assert.Error(t, bad.Validate(validate))

	r := Rating{Rating: 4, Feedback: "  very\n clear "}
	require.NoError(t, r.Validate(validate))

	_, err = svc.RateSession(ctx, usr.ID, uuid.NewString(), r)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.RateSession(ctx, uuid.NewString(), ans.ID, r)
	assert.ErrorIs(t, err, ErrNotFound, "only the owner may rate")

	s, err := svc.RateSession(ctx, usr.ID, ans.ID, r)
	require.NoError(t, err)
	assert.Equal(t, 4, s.UserRating.Int)
	assert.Equal(t, "very clear", s.UserFeedback.String)

	s, err = svc.RateSession(ctx, usr.ID, ans.ID, Rating{Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, s.UserRating.Int)
	assert.False(t, s.UserFeedback.Valid)
}

func TestService_Cleanup(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, new(fakeGen), nil).(*service)
	usr := testStudent()
	ctx := context.Background()

	now := time.Now()
	for _, age := range []int{100, 91, 30, 0} {
		svc.now = func() time.Time { return now.AddDate(0, 0, -age) }
		_, err := svc.Ask(ctx, usr, AskRequest{Question: "What is an atom?"})
		require.NoError(t, err)
	}
	svc.now = func() time.Time { return now }

	n, err := svc.Cleanup(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = svc.Cleanup(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Len(t, repo.sessions, 1)
}
