package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencegpt/core"
)

type mailSpy struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailSpy) SendMessages(msgs ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgs...)
}

func TestEmailAlerter(t *testing.T) {
	_, err := NewEmailAlerter(&mailSpy{}, "not an email", 0, nil)
	assert.Error(t, err)

	spy := new(mailSpy)
	a, err := NewEmailAlerter(spy, "Ops <ops@example.com>", 0, nil)
	require.NoError(t, err)
	now := time.Now()
	a.now = func() time.Time { return now }

	info := OutageInfo{Provider: ProviderGroq, Failures: 5, OpenedAt: now, LastError: "boom", RecoveryTimeout: 30 * time.Second}
	a.ProviderDown(info)
	a.ProviderDown(info)
	require.Len(t, spy.sent, 1, "alerts are throttled per provider")

	msg := spy.sent[0]
	assert.Equal(t, "ops@example.com", msg.To[0].Address)
	assert.Equal(t, "provider_outage", msg.TemplateName)
	assert.Equal(t, "LLM provider groq is down", msg.Subject)

	a.ProviderDown(OutageInfo{Provider: ProviderOpenAI})
	assert.Len(t, spy.sent, 2)

	now = now.Add(DefaultAlertInterval)
	a.ProviderDown(info)
	assert.Len(t, spy.sent, 3)
}
