// Package security holds the secret-handling pieces shared by the relay:
// log redaction, the audit trail, and bounded request body decoding.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every redacted value.
const RedactPlaceholder = "***REDACTED***"

// botTokenPattern matches Telegram bot tokens (<bot id>:<35 char secret>).
// Tokens travel in webhook paths and Bot API URLs, so any log line
// carrying a URL can leak one.
var botTokenPattern = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)

// Redactor replaces bot tokens and configured literal secrets in strings.
// It is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor that masks bot tokens plus the given
// literal secrets. Empty literals are ignored.
func NewRedactor(literals ...string) *Redactor {
	r := &Redactor{patterns: []*regexp.Regexp{botTokenPattern}}
	for _, lit := range literals {
		r.AddLiteral(lit)
	}
	return r
}

// AddLiteral registers a secret value to mask wherever it appears.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
// Literals are replaced before patterns so a secret that happens to
// contain a token-like run is masked whole.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}
