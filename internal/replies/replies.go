// Package replies resolves the auto-reply text sent back to users.
package replies

import (
	"strings"

	"github.com/flemzord/tgrelay/internal/telegram"
)

// Rule maps a set of triggers to one reply.
type Rule struct {
	Triggers []string `yaml:"triggers"`
	Reply    string   `yaml:"reply"`
}

// Table holds every fixed text the relay can send.
type Table struct {
	OwnerHelp    string `yaml:"owner_help"`
	Welcome      string `yaml:"welcome"`
	DefaultText  string `yaml:"default_text"`
	DefaultMedia string `yaml:"default_media"`
	Keywords     []Rule `yaml:"keywords"`
}

// Kind tells which branch produced a reply.
type Kind string

const (
	KindKeyword      Kind = "keyword"
	KindDefaultText  Kind = "default_text"
	KindDefaultMedia Kind = "default_media"
)

// Resolver looks up replies in a Table. The table is lower-cased once at
// construction so lookups do no allocation beyond the input.
type Resolver struct {
	table Table
	rules [][]string
}

// NewResolver creates a Resolver. Empty fields of t fall back to
// DefaultTable; a nil Keywords slice keeps the default rules while an
// empty non-nil slice disables keyword matching.
func NewResolver(t Table) *Resolver {
	t = t.withDefaults()
	rules := make([][]string, len(t.Keywords))
	for i, r := range t.Keywords {
		lowered := make([]string, 0, len(r.Triggers))
		for _, trig := range r.Triggers {
			if trig = strings.ToLower(strings.TrimSpace(trig)); trig != "" {
				lowered = append(lowered, trig)
			}
		}
		rules[i] = lowered
	}
	return &Resolver{table: t, rules: rules}
}

// OwnerHelp returns the text sent to the owner on direct messages.
func (r *Resolver) OwnerHelp() string { return r.table.OwnerHelp }

// Welcome returns the /start text.
func (r *Resolver) Welcome() string { return r.table.Welcome }

// Match returns the reply for text using exact whole-string matches
// across all rules first, then substring containment. Both passes are
// case-insensitive and pick the first matching rule.
func (r *Resolver) Match(text string) (string, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}
	for i, triggers := range r.rules {
		for _, trig := range triggers {
			if trig == text {
				return r.table.Keywords[i].Reply, true
			}
		}
	}
	for i, triggers := range r.rules {
		for _, trig := range triggers {
			if strings.Contains(text, trig) {
				return r.table.Keywords[i].Reply, true
			}
		}
	}
	return "", false
}

// Resolve picks the auto-reply for a non-owner message: a keyword match,
// else the default for plain text or media.
func (r *Resolver) Resolve(msg *telegram.Message) (string, Kind) {
	if reply, ok := r.Match(msg.Text); ok {
		return reply, KindKeyword
	}
	if msg.Text == "" && msg.HasMedia() {
		return r.table.DefaultMedia, KindDefaultMedia
	}
	return r.table.DefaultText, KindDefaultText
}

func (t Table) withDefaults() Table {
	d := DefaultTable()
	if t.OwnerHelp == "" {
		t.OwnerHelp = d.OwnerHelp
	}
	if t.Welcome == "" {
		t.Welcome = d.Welcome
	}
	if t.DefaultText == "" {
		t.DefaultText = d.DefaultText
	}
	if t.DefaultMedia == "" {
		t.DefaultMedia = d.DefaultMedia
	}
	if t.Keywords == nil {
		t.Keywords = d.Keywords
	}
	return t
}
