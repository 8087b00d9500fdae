package llm

import (
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/trezcool/sciencegpt/core"
)

const DefaultAlertInterval = 15 * time.Minute

// OutageInfo describes a provider whose circuit just opened.
type OutageInfo struct {
	Provider        Provider
	Failures        int
	OpenedAt        time.Time
	LastError       string
	RecoveryTimeout time.Duration
}

type Alerter interface {
	ProviderDown(info OutageInfo)
}

// EmailAlerter mails provider outages, at most once per provider per interval.
type EmailAlerter struct {
	mailSvc  core.EmailService
	to       mail.Address
	interval time.Duration
	logger   core.Logger

	mu   sync.Mutex
	last map[Provider]time.Time
	now  func() time.Time
}

var _ Alerter = (*EmailAlerter)(nil)

func NewEmailAlerter(mailSvc core.EmailService, to string, interval time.Duration, logger core.Logger) (*EmailAlerter, error) {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, core.NewFieldError("alert_email", err.Error())
	}
	if interval <= 0 {
		interval = DefaultAlertInterval
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &EmailAlerter{
		mailSvc:  mailSvc,
		to:       *addr,
		interval: interval,
		logger:   logger,
		last:     make(map[Provider]time.Time),
		now:      time.Now,
	}, nil
}

func (a *EmailAlerter) ProviderDown(info OutageInfo) {
	now := a.now()
	a.mu.Lock()
	if last, ok := a.last[info.Provider]; ok && now.Sub(last) < a.interval {
		a.mu.Unlock()
		a.logger.Debug(fmt.Sprintf("outage alert for %s throttled", info.Provider))
		return
	}
	a.last[info.Provider] = now
	a.mu.Unlock()

	a.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{a.to},
		Subject:      fmt.Sprintf("LLM provider %s is down", info.Provider),
		TemplateName: "provider_outage",
		TemplateData: map[string]interface{}{
			"Provider":        string(info.Provider),
			"Failures":        info.Failures,
			"OpenedAt":        info.OpenedAt.UTC().Format(time.RFC1123),
			"LastError":       info.LastError,
			"RecoveryTimeout": info.RecoveryTimeout.String(),
		},
	})
}
