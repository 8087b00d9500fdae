package llm

import (
	"encoding/json"
	"time"
)

type Provider string

// Providers
const (
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Providers lists every provider in canonical order. Fallbacks follow this order.
var Providers = []Provider{ProviderGroq, ProviderOpenAI, ProviderAnthropic}

func ParseProvider(s string) (Provider, bool) {
	for _, p := range Providers {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// ProviderConfig holds the call parameters of a provider.
type ProviderConfig struct {
	Provider          Provider      `json:"provider"`
	Model             string        `json:"model"`
	MaxTokens         int           `json:"max_tokens"`
	Temperature       float64       `json:"temperature"`
	Timeout           time.Duration `json:"-"`
	CostPerToken      float64       `json:"cost_per_token"`
	RequestsPerMinute int           `json:"requests_per_minute"`
}

func (c ProviderConfig) MarshalJSON() ([]byte, error) {
	type alias ProviderConfig
	return json.Marshal(struct {
		alias
		TimeoutSeconds int `json:"timeout"`
	}{alias: alias(c), TimeoutSeconds: int(c.Timeout / time.Second)})
}

// DefaultProviderConfigs returns a fresh copy of the default configuration of every provider.
func DefaultProviderConfigs() map[Provider]ProviderConfig {
	return map[Provider]ProviderConfig{
		ProviderGroq: {
			Provider:          ProviderGroq,
			Model:             "llama3-8b-8192",
			MaxTokens:         1500,
			Temperature:       0.7,
			Timeout:           30 * time.Second,
			CostPerToken:      0.0001,
			RequestsPerMinute: 30,
		},
		ProviderOpenAI: {
			Provider:          ProviderOpenAI,
			Model:             "gpt-3.5-turbo",
			MaxTokens:         1500,
			Temperature:       0.7,
			Timeout:           30 * time.Second,
			CostPerToken:      0.0015,
			RequestsPerMinute: 60,
		},
		ProviderAnthropic: {
			Provider:          ProviderAnthropic,
			Model:             "claude-3-haiku-20240307",
			MaxTokens:         1500,
			Temperature:       0.7,
			Timeout:           30 * time.Second,
			CostPerToken:      0.0008,
			RequestsPerMinute: 50,
		},
	}
}

// RequestType drives the provider preference.
type RequestType string

// Request types
const (
	RequestGeneral  RequestType = "general"
	RequestComplex  RequestType = "complex"
	RequestCreative RequestType = "creative"
	RequestFactual  RequestType = "factual"
)

var RequestTypes = []RequestType{RequestGeneral, RequestComplex, RequestCreative, RequestFactual}

var preferenceOrders = map[RequestType][]Provider{
	RequestGeneral:  {ProviderGroq, ProviderOpenAI, ProviderAnthropic},
	RequestComplex:  {ProviderOpenAI, ProviderAnthropic, ProviderGroq},
	RequestCreative: {ProviderAnthropic, ProviderOpenAI, ProviderGroq},
	RequestFactual:  {ProviderGroq, ProviderOpenAI, ProviderAnthropic},
}

// PreferenceOrder returns the providers preferred for rt, best first.
// Unknown request types get the general order.
func PreferenceOrder(rt RequestType) []Provider {
	if order, ok := preferenceOrders[rt]; ok {
		return order
	}
	return preferenceOrders[RequestGeneral]
}
