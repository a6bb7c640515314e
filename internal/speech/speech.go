package speech

import (
	"context"
	"regexp"
	"strings"
)

// Listener returns the next recognised utterance, lower-cased. Recognition
// failures yield an empty string rather than an error.
type Listener interface {
	Listen(ctx context.Context) string
}

// Narrator speaks text and blocks until playback has finished.
type Narrator interface {
	Speak(ctx context.Context, text string) error
}

var nonWord = regexp.MustCompile(`[^a-z0-9' ]+`)

func normalizeUtterance(text string) string {
	text = strings.ToLower(text)
	text = nonWord.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// WakeMatcher spots the wake phrase anywhere in an utterance.
type WakeMatcher struct {
	phrase string
}

func NewWakeMatcher(phrase string) *WakeMatcher {
	phrase = normalizeUtterance(phrase)
	if phrase == "" {
		phrase = "hello vision"
	}
	return &WakeMatcher{phrase: phrase}
}

func (m *WakeMatcher) Phrase() string { return m.phrase }

// Match reports whether the utterance contains the wake phrase and returns
// whatever was said after it.
func (m *WakeMatcher) Match(utterance string) (string, bool) {
	text := normalizeUtterance(utterance)
	idx := strings.Index(text, m.phrase)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(text[idx+len(m.phrase):]), true
}
