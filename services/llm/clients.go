package llmsvc

import (
	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/llm"
)

// NewClients returns a client for every provider that has an API key.
func NewClients(conf *core.Config) map[llm.Provider]llm.Client {
	clients := make(map[llm.Provider]llm.Client, len(llm.Providers))
	if conf.LLM.GroqAPIKey != "" {
		clients[llm.ProviderGroq] = NewOpenAIClient(conf.LLM.GroqAPIKey, conf.LLM.GroqBaseURL)
	}
	if conf.LLM.OpenAIAPIKey != "" {
		clients[llm.ProviderOpenAI] = NewOpenAIClient(conf.LLM.OpenAIAPIKey, conf.LLM.OpenAIBaseURL)
	}
	if conf.LLM.AnthropicAPIKey != "" {
		clients[llm.ProviderAnthropic] = NewAnthropicClient(conf.LLM.AnthropicAPIKey, conf.LLM.AnthropicBaseURL)
	}
	return clients
}
