package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// KeyLength is the number of hex characters kept from the SHA-256 digest.
const KeyLength = 32

// Key defaults, applied to zero values.
const (
	DefaultGrade    = 6
	DefaultSubject  = "Science"
	DefaultLanguage = "English"
	DefaultType     = "general"
)

// TTL bounds.
const (
	MinTTL = 5 * time.Minute
	MaxTTL = 24 * time.Hour
)

// KeyParams are the request attributes that make two responses interchangeable.
type KeyParams struct {
	Question        string
	Grade           int
	Subject         string
	Language        string
	Type            string
	IncludeExamples *bool // nil means true
}

// Key returns the cache key of a request: the first 32 hex characters of the
// SHA-256 of its canonical JSON form (sorted keys, ", " and ": " separators,
// non-ASCII escaped). The question is trimmed and lowered first.
func Key(p KeyParams) string {
	grade, subject, language, typ := p.Grade, p.Subject, p.Language, p.Type
	if grade == 0 {
		grade = DefaultGrade
	}
	if subject == "" {
		subject = DefaultSubject
	}
	if language == "" {
		language = DefaultLanguage
	}
	if typ == "" {
		typ = DefaultType
	}
	includeExamples := p.IncludeExamples == nil || *p.IncludeExamples

	var b strings.Builder
	b.WriteString(`{"grade": `)
	b.WriteString(strconv.Itoa(grade))
	b.WriteString(`, "include_examples": `)
	b.WriteString(strconv.FormatBool(includeExamples))
	b.WriteString(`, "language": `)
	writeJSONString(&b, language)
	b.WriteString(`, "question": `)
	writeJSONString(&b, strings.ToLower(strings.TrimSpace(p.Question)))
	b.WriteString(`, "subject": `)
	writeJSONString(&b, subject)
	b.WriteString(`, "type": `)
	writeJSONString(&b, typ)
	b.WriteString(`}`)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:KeyLength]
}

// writeJSONString writes s as an ASCII-only JSON string.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				fmt.Fprintf(b, `\u%04x`, r)
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				fmt.Fprintf(b, `\u%04x\u%04x`, r1, r2)
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

var ttlMultipliers = map[string]float64{
	"concept_explanation": 2.0,
	"quiz_generation":     0.5,
	"study_suggestions":   0.25,
	"concept_map":         1.5,
	"general":             1.0,
}

// TTL computes how long a response should be kept.
// The base is scaled by the content type, then by 1.5 for long answers (> 1000 tokens)
// and by 2 for slow ones (> 10s). Every step truncates to whole seconds and the
// result is clamped to [MinTTL, MaxTTL].
func TTL(base time.Duration, contentType string, tokensUsed int, responseTimeMS int64) time.Duration {
	mult, ok := ttlMultipliers[contentType]
	if !ok {
		mult = 1.0
	}
	secs := int64(float64(int64(base/time.Second)) * mult)
	if tokensUsed > 1000 {
		secs = int64(float64(secs) * 1.5)
	}
	if responseTimeMS > 10000 {
		secs = int64(float64(secs) * 2.0)
	}

	ttl := time.Duration(secs) * time.Second
	if ttl < MinTTL {
		return MinTTL
	}
	if ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}
