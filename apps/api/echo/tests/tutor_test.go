package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/tutor"
	"github.com/trezcool/sciencegpt/core/user"
	testutil "github.com/trezcool/sciencegpt/tests"
)

func Test_tutorApi_ask(t *testing.T) {
	env := setup(t)

	asha := testutil.CreateUser(t, env.usrRepo, "Asha", "asha", "asha@example.com", "", []string{user.RoleStudent}, true)
	token := env.getToken(t, asha)

	tests := []httpTest{
		{name: "auth required", body: []byte(`{"question": "What is energy?"}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "no question", body: []byte(`{}`), token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"question": "this field is required"}),
		},
		{
			name: "unknown subject", body: []byte(`{"question": "What is energy?", "subject": "Astrology"}`), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"subject": "subject must be one of: Physics, Chemistry, Biology, Science"}),
		},
		{
			name: "unknown request type", body: []byte(`{"question": "What is energy?", "request_type": "poetry"}`), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"request_type": "request type must be one of: general, complex, creative, factual"}),
		},
		{
			name: "too short", body: []byte(`{"question": " hi "}`), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid input question"}),
		},
		{
			name: "providers down", body: marchallObj(t, map[string]string{"question": failQuestion}), token: token,
			wantCode: http.StatusServiceUnavailable,
			wantData: marchallObj(t, httpErr{Error: "all LLM providers are currently unavailable, please try again later"}),
		},
		{name: "ask", body: []byte(`{"question": "What is energy?", "subject": "physics"}`), token: token, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/tutor/ask"
			rec := env.serve(tt)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				data := unmarshalMap(t, rec)
				assert.Equal(t, "Energy is the capacity to do work.", data["content"])
				assert.Equal(t, "groq", data["provider"])
				assert.Equal(t, false, data["cached"])
				assert.NotEmpty(t, data["id"])
				_, err := uuid.Parse(data["session_id"].(string))
				assert.NoError(t, err)
			}
		})
	}

	t.Run("cached answer", func(t *testing.T) {
		calls := env.llm.Calls()
		rec := env.serve(httpTest{
			method: http.MethodPost, path: "/v1/tutor/ask", token: token,
			body: []byte(`{"question": "what is energy?", "subject": "Physics"}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, unmarshalMap(t, rec)["cached"])
		assert.Equal(t, calls, env.llm.Calls())
	})
}

func Test_tutorApi_specialized(t *testing.T) {
	env := setup(t)

	asha := testutil.CreateUser(t, env.usrRepo, "Asha", "asha", "asha@example.com", "", []string{user.RoleStudent}, true)
	token := env.getToken(t, asha)

	tests := []httpTest{
		{name: "explain", path: "/v1/tutor/explain", body: []byte(`{"topic": "Photosynthesis", "subject": "Biology"}`), wantCode: http.StatusOK},
		{
			name: "explain: no topic", path: "/v1/tutor/explain", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"topic": "this field is required"}),
		},
		{name: "quiz", path: "/v1/tutor/quiz", body: []byte(`{"topic": "Atoms", "difficulty": "beginner"}`), wantCode: http.StatusOK},
		{name: "quiz: bad difficulty", path: "/v1/tutor/quiz", body: []byte(`{"topic": "Atoms", "difficulty": "insane"}`), wantCode: http.StatusBadRequest},
		{name: "concept map", path: "/v1/tutor/concept-map", body: []byte(`{"topic": "Energy"}`), wantCode: http.StatusOK},
		{
			name: "study suggestions", path: "/v1/tutor/study-suggestions",
			body: []byte(`{"weak_subjects": ["Chemistry"], "learning_goals": ["pass the exam"]}`), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.token = http.MethodPost, token
			rec := env.serve(tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				assert.NotEmpty(t, unmarshalMap(t, rec)["content"])
			}
		})
	}

	rec := env.serve(httpTest{path: "/v1/tutor/history", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []tutor.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 4)
}

func Test_tutorApi_history(t *testing.T) {
	env := setup(t)

	asha := testutil.CreateUser(t, env.usrRepo, "Asha", "asha", "asha@example.com", "", []string{user.RoleStudent}, true)
	ravi := testutil.CreateUser(t, env.usrRepo, "Ravi", "ravi", "ravi@example.com", "", []string{user.RoleStudent}, true)
	ashaToken, raviToken := env.getToken(t, asha), env.getToken(t, ravi)

	ask := func(token, body string) map[string]interface{} {
		rec := env.serve(httpTest{method: http.MethodPost, path: "/v1/tutor/ask", token: token, body: []byte(body)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return unmarshalMap(t, rec)
	}
	first := ask(ashaToken, `{"question": "What is an atom?", "subject": "Chemistry"}`)
	sessionID := first["session_id"].(string)
	second := ask(ashaToken, `{"question": "What is a molecule?", "subject": "Chemistry", "session_id": "`+sessionID+`"}`)
	third := ask(ashaToken, `{"question": "What is a cell?", "subject": "Biology"}`)
	ask(raviToken, `{"question": "What is gravity?"}`)

	ids := func(t *testing.T, path string) []string {
		rec := env.serve(httpTest{path: path, token: ashaToken})
		require.Equal(t, http.StatusOK, rec.Code)
		var sessions []tutor.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
		out := make([]string, 0, len(sessions))
		for _, s := range sessions {
			assert.Equal(t, asha.ID, s.UserID)
			out = append(out, s.ID)
		}
		return out
	}

	assert.Equal(t, []string{third["id"].(string), second["id"].(string), first["id"].(string)}, ids(t, "/v1/tutor/history"))
	assert.Equal(t, []string{second["id"].(string), first["id"].(string)}, ids(t, "/v1/tutor/history?subject=chemistry"))
	assert.Equal(t, []string{second["id"].(string), first["id"].(string)}, ids(t, "/v1/tutor/history?session_id="+sessionID))
	assert.Equal(t, []string{third["id"].(string)}, ids(t, "/v1/tutor/history?limit=1"))

	for _, path := range []string{"/v1/tutor/history?limit=abc", "/v1/tutor/history?limit=1.5"} {
		rec := env.serve(httpTest{path: path, token: ashaToken})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	t.Run("rating", func(t *testing.T) {
		path := "/v1/tutor/history/" + first["id"].(string) + "/rating"
		tests := []httpTest{
			{name: "auth required", path: path, body: []byte(`{"rating": 5}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
			{name: "out of range", path: path, token: ashaToken, body: []byte(`{"rating": 6}`), wantCode: http.StatusBadRequest},
			{
				name: "not the owner", path: path, token: raviToken, body: []byte(`{"rating": 1}`),
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: tutor.ErrNotFound.Error()}),
			},
			{
				name: "unknown session", path: "/v1/tutor/history/" + uuid.NewString() + "/rating", token: ashaToken,
				body: []byte(`{"rating": 4}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: tutor.ErrNotFound.Error()}),
			},
			{name: "rate", path: path, token: ashaToken, body: []byte(`{"rating": 5, "feedback": " very  clear "}`), wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.method = http.MethodPost
				rec := env.serve(tt)
				checkCodeAndData(t, tt, rec)
				if tt.wantCode == http.StatusOK {
					data := unmarshalMap(t, rec)
					assert.EqualValues(t, 5, data["user_rating"])
					assert.Equal(t, "very clear", data["user_feedback"])
					assert.Equal(t, core.SubjectChemistry, data["subject"])
				}
			})
		}
	})
}
