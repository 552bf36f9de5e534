package replies

import (
	"testing"

	"github.com/flemzord/tgrelay/internal/telegram"
)

func testTable() Table {
	return Table{
		OwnerHelp:    "help-owner",
		Welcome:      "welcome",
		DefaultText:  "default-text",
		DefaultMedia: "default-media",
		Keywords: []Rule{
			{Triggers: []string{"hi", "hello"}, Reply: "greeting"},
			{Triggers: []string{"help"}, Reply: "usage"},
			{Triggers: []string{"hi there"}, Reply: "exact-hi-there"},
		},
	}
}

func TestMatchExactBeatsSubstring(t *testing.T) {
	r := NewResolver(testTable())

	// "hi there" contains "hi" (rule 0) but matches rule 2 exactly.
	got, ok := r.Match("Hi There")
	if !ok || got != "exact-hi-there" {
		t.Errorf("Match(Hi There) = %q, %v; want exact-hi-there", got, ok)
	}
}

func TestMatchSubstringFirstRuleWins(t *testing.T) {
	r := NewResolver(testTable())

	// Contains both "hello" (rule 0) and "help" (rule 1).
	got, ok := r.Match("hello, I need help")
	if !ok || got != "greeting" {
		t.Errorf("Match = %q, %v; want greeting", got, ok)
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	r := NewResolver(testTable())
	if got, ok := r.Match("  HELP  "); !ok || got != "usage" {
		t.Errorf("Match = %q, %v; want usage", got, ok)
	}
}

func TestMatchSubstringInsideWord(t *testing.T) {
	r := NewResolver(testTable())

	// Triggers match anywhere in the text: "nothing" contains "hi".
	if got, ok := r.Match("nothing relevant"); !ok || got != "greeting" {
		t.Errorf("Match(nothing relevant) = %q, %v; want greeting", got, ok)
	}
}

func TestMatchNone(t *testing.T) {
	r := NewResolver(testTable())
	if _, ok := r.Match("zzz qqq"); ok {
		t.Error("expected no match")
	}
	if _, ok := r.Match(""); ok {
		t.Error("empty text must not match")
	}
}

func TestResolveDefaults(t *testing.T) {
	r := NewResolver(testTable())

	tests := []struct {
		name string
		msg  telegram.Message
		want string
		kind Kind
	}{
		{"keyword", telegram.Message{Text: "hello"}, "greeting", KindKeyword},
		{"plain text", telegram.Message{Text: "what's up"}, "default-text", KindDefaultText},
		{"photo", telegram.Message{Photo: []telegram.PhotoSize{{FileID: "p"}}}, "default-media", KindDefaultMedia},
		{"document", telegram.Message{Document: &telegram.FileRef{FileID: "d"}}, "default-media", KindDefaultMedia},
		{"location", telegram.Message{Location: &telegram.Location{Latitude: 1}}, "default-media", KindDefaultMedia},
		{"empty", telegram.Message{}, "default-text", KindDefaultText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind := r.Resolve(&tt.msg)
			if got != tt.want || kind != tt.kind {
				t.Errorf("Resolve = %q, %s; want %q, %s", got, kind, tt.want, tt.kind)
			}
		})
	}
}

func TestNewResolverFillsDefaults(t *testing.T) {
	r := NewResolver(Table{Welcome: "custom"})
	d := DefaultTable()

	if r.Welcome() != "custom" {
		t.Errorf("Welcome = %q, want custom", r.Welcome())
	}
	if r.OwnerHelp() != d.OwnerHelp {
		t.Error("OwnerHelp should fall back to default")
	}
	if _, ok := r.Match("thanks"); !ok {
		t.Error("default keyword rules should apply when Keywords is nil")
	}
}

func TestEmptyKeywordsDisablesMatching(t *testing.T) {
	r := NewResolver(Table{Keywords: []Rule{}})
	if _, ok := r.Match("hello"); ok {
		t.Error("empty keyword list should disable matching")
	}
}

func TestDefaultTableOriginalTriggers(t *testing.T) {
	r := NewResolver(DefaultTable())
	for _, text := range []string{"你好", "帮助", "谢谢", "状态", "联系主人", "再见"} {
		if _, ok := r.Match(text); !ok {
			t.Errorf("Match(%q) should hit a default rule", text)
		}
	}
}
