package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/sciencegpt/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates   tmplCache
	templatesMu sync.RWMutex
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
	tmplCache map[string]*tmplCacheEntry // {name: entry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName string
		Data    interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent using the message's template (or BodyStr).
func (m *EmailMessage) Render(appName string) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	templatesMu.RLock()
	entry, ok := templates[m.TemplateName]
	templatesMu.RUnlock()
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}

	data := ContextData{AppName: appName, Data: m.TemplateData}
	if entry.text != nil && m.TextContent == "" {
		var buff bytes.Buffer
		if err := entry.text.Execute(&buff, data); err != nil {
			return errors.Wrap(err, "rendering text template")
		}
		m.TextContent = buff.String()
	}
	if entry.html != nil {
		var buff bytes.Buffer
		if err := entry.html.Execute(&buff, data); err != nil {
			return errors.Wrap(err, "rendering html template")
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseEmailTemplates parses the embedded email templates. Files starting with "_" are layouts.
func ParseEmailTemplates(logger Logger) {
	cache := make(tmplCache)

	entries, err := fs.ReadDir(appfs.FS, emailTemplatesDir)
	if err != nil {
		logger.Error("reading email templates", errors.Wrap(err, "core.ParseEmailTemplates"))
		return
	}

	for _, de := range entries {
		fname := de.Name()
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := cache[name]
		if !ok {
			entry = new(tmplCacheEntry)
			cache[name] = entry
		}

		fp := path.Join(emailTemplatesDir, fname)
		base := path.Join(emailTemplatesDir, "_base"+ext)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(appfs.FS, base, fp)
			if err != nil {
				logger.Error("parsing email template "+fname, errors.Wrap(err, "core.ParseEmailTemplates"))
				continue
			}
			entry.text = tmpl.Option("missingkey=error")
		} else {
			tmpl, err := htmltmpl.ParseFS(appfs.FS, base, fp)
			if err != nil {
				logger.Error("parsing email template "+fname, errors.Wrap(err, "core.ParseEmailTemplates"))
				continue
			}
			entry.html = tmpl.Option("missingkey=error")
		}
	}

	templatesMu.Lock()
	templates = cache
	templatesMu.Unlock()
}
