package speech

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestWakeMatcher_Match(t *testing.T) {
	m := NewWakeMatcher("Hello Vision")

	tests := []struct {
		utterance string
		wantOK    bool
		wantRest  string
	}{
		{"hello vision", true, ""},
		{"Hello, Vision! find my keys", true, "find my keys"},
		{"um hello vision what is in front of me", true, "what is in front of me"},
		{"hello there", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		rest, ok := m.Match(tt.utterance)
		if ok != tt.wantOK || rest != tt.wantRest {
			t.Errorf("Match(%q) = (%q, %v), want (%q, %v)", tt.utterance, rest, ok, tt.wantRest, tt.wantOK)
		}
	}
}

func TestWakeMatcher_DefaultPhrase(t *testing.T) {
	if p := NewWakeMatcher("  ").Phrase(); p != "hello vision" {
		t.Errorf("expected default phrase, got %q", p)
	}
}

func TestParseTranscript(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"Find My Keys", "find my keys", true},
		{`{"event":"transcript","text":"Hello Vision"}`, "hello vision", true},
		{`{"event":"transcript","payload":{"utterance":"Help"}}`, "help", true},
		{`{"type":"partial","text":"hel"}`, "", false},
		{`{"text":"done","final":false}`, "", false},
		{`{"event":"silence"}`, "", false},
		{"   ", "", false},
	}

	for _, tt := range tests {
		got, ok := parseTranscript(tt.line)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseTranscript(%q) = (%q, %v), want (%q, %v)", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestReaderListener(t *testing.T) {
	l := NewReaderListener(strings.NewReader("Hello Vision\n\nWhat is Here\n"), nil)
	ctx := context.Background()

	if got := l.Listen(ctx); got != "hello vision" {
		t.Errorf("first line = %q", got)
	}
	if got := l.Listen(ctx); got != "what is here" {
		t.Errorf("second line = %q", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if got := l.Listen(ctx); got != "" {
		t.Errorf("expected empty after EOF, got %q", got)
	}
}

func TestCommandListener(t *testing.T) {
	l := NewCommandListener(CommandConfig{
		Command: "sh",
		Args:    []string{"-c", `echo 'Hello Vision'; echo '{"text":"Find My Keys"}'`},
	}, nil)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if got := l.Listen(ctx); got != "hello vision" {
		t.Errorf("first transcript = %q", got)
	}
	if got := l.Listen(ctx); got != "find my keys" {
		t.Errorf("second transcript = %q", got)
	}
}

func TestCommandListener_MissingBinary(t *testing.T) {
	l := NewCommandListener(CommandConfig{Command: "/nonexistent/stt"}, nil)
	if got := l.Listen(context.Background()); got != "" {
		t.Errorf("expected empty utterance, got %q", got)
	}
}

func TestCommandListener_MissingBinaryWarnsOnce(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	l := NewCommandListener(CommandConfig{Command: "/nonexistent/stt", RestartDelay: 5 * time.Millisecond}, logger)
	defer l.Close()

	for i := 0; i < 3; i++ {
		if got := l.Listen(context.Background()); got != "" {
			t.Fatalf("expected empty utterance, got %q", got)
		}
	}
	if n := strings.Count(logs.String(), "recogniser unavailable"); n != 1 {
		t.Errorf("expected one warning for repeated start failures, got %d:\n%s", n, logs.String())
	}
}

func TestCommandListener_CloseDuringRestartDelay(t *testing.T) {
	l := NewCommandListener(CommandConfig{Command: "/nonexistent/stt", RestartDelay: 5 * time.Second}, nil)
	l.Listen(context.Background())

	returned := make(chan string, 1)
	go func() { returned <- l.Listen(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("Close waited %v for the restart delay", waited)
	}

	select {
	case got := <-returned:
		if got != "" {
			t.Errorf("expected empty utterance, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Listen kept waiting after Close")
	}
}
