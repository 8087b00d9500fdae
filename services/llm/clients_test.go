package llmsvc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/llm"
)

type fakeAPI struct {
	path   string
	status int
	body   string
	got    map[string]interface{}
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, f.path, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		f.got = nil
		_ = json.Unmarshal(body, &f.got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(p llm.Provider) llm.ProviderConfig {
	cfg := llm.DefaultProviderConfigs()[p]
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestOpenAIClient(t *testing.T) {
	api := &fakeAPI{
		path:   "/v1/chat/completions",
		status: http.StatusOK,
		body: `{"id":"c1","object":"chat.completion","created":1,"model":"llama3-8b-8192",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Energy is the capacity to do work."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`,
	}
	srv := api.server(t)
	c := NewOpenAIClient("key", srv.URL+"/v1/")
	cfg := testConfig(llm.ProviderGroq)

	comp, err := c.Complete(context.Background(), cfg, "You are a tutor.", "What is energy?")
	require.NoError(t, err)
	assert.Equal(t, "Energy is the capacity to do work.", comp.Content)
	assert.Equal(t, 30, comp.TokensUsed)
	assert.Equal(t, "llama3-8b-8192", comp.Metadata["model"])
	assert.Equal(t, "stop", comp.Metadata["finish_reason"])

	assert.Equal(t, cfg.Model, api.got["model"])
	assert.EqualValues(t, cfg.MaxTokens, api.got["max_tokens"])
	msgs := api.got["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "What is energy?", msgs[1].(map[string]interface{})["content"])

	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			api.status = tc.status
			api.body = `{"error":{"message":"nope","type":"error","code":"nope"}}`
			_, err := c.Complete(context.Background(), cfg, "s", "u")
			var apiErr *llm.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.retryable, llm.Retryable(err))
		})
	}

	api.status = http.StatusOK
	api.body = `{"id":"c2","object":"chat.completion","created":1,"model":"m","choices":[],"usage":{}}`
	_, err = c.Complete(context.Background(), cfg, "s", "u")
	assert.Error(t, err)
}

func TestAnthropicClient(t *testing.T) {
	api := &fakeAPI{
		path:   "/v1/messages",
		status: http.StatusOK,
		body: `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307",
			"content":[{"type":"text","text":"Photosynthesis turns light "},{"type":"text","text":"into sugar."}],
			"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":8}}`,
	}
	srv := api.server(t)
	c := NewAnthropicClient("key", srv.URL+"/")
	cfg := testConfig(llm.ProviderAnthropic)

	comp, err := c.Complete(context.Background(), cfg, "You are a tutor.", "What is photosynthesis?")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis turns light into sugar.", comp.Content)
	assert.Equal(t, 20, comp.TokensUsed)
	assert.Equal(t, "end_turn", comp.Metadata["stop_reason"])

	assert.Equal(t, cfg.Model, api.got["model"])
	system := api.got["system"].([]interface{})
	assert.Equal(t, "You are a tutor.", system[0].(map[string]interface{})["text"])

	api.status = http.StatusServiceUnavailable
	api.body = `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`
	_, err = c.Complete(context.Background(), cfg, "s", "u")
	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, llm.Retryable(err))
}

func TestNewClients(t *testing.T) {
	conf := core.NewTestConfig()
	conf.LLM.GroqAPIKey = ""
	conf.LLM.OpenAIAPIKey = ""
	conf.LLM.AnthropicAPIKey = ""
	assert.Empty(t, NewClients(conf))

	conf.LLM.GroqAPIKey = "gsk"
	conf.LLM.AnthropicAPIKey = "sk-ant"
	clients := NewClients(conf)
	assert.Len(t, clients, 2)
	assert.IsType(t, &OpenAIClient{}, clients[llm.ProviderGroq])
	assert.IsType(t, &AnthropicClient{}, clients[llm.ProviderAnthropic])
}
