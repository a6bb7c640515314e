package speech

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeSynth struct {
	data []byte
	err  error
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return s.data, s.err
}

type fakePlayer struct {
	played bool
}

func (p *fakePlayer) Play(ctx context.Context, pcm io.Reader, sampleRate int) error {
	p.played = true
	return nil
}

func TestEdgeNarrator_SynthesisError(t *testing.T) {
	failure := errors.New("service unreachable")
	player := &fakePlayer{}
	n := NewEdgeNarrator(&fakeSynth{err: failure}, player, nil)

	if err := n.Speak(context.Background(), "hello"); !errors.Is(err, failure) {
		t.Errorf("expected synthesis error, got %v", err)
	}
	if player.played {
		t.Error("nothing should be played")
	}
}

func TestEdgeNarrator_InvalidAudio(t *testing.T) {
	player := &fakePlayer{}
	n := NewEdgeNarrator(&fakeSynth{data: []byte("not an mp3")}, player, nil)

	if err := n.Speak(context.Background(), "hello"); err == nil {
		t.Error("expected decode error")
	}

	n = NewEdgeNarrator(&fakeSynth{}, player, nil)
	if err := n.Speak(context.Background(), "hello"); err == nil {
		t.Error("expected error for empty audio")
	}
	if player.played {
		t.Error("nothing should be played")
	}
}

func TestCommandPlayer_Args(t *testing.T) {
	args := strings.Join((&CommandPlayer{}).args(24000), " ")
	if args != "-q -t raw -f S16_LE -c 2 -r 24000 -" {
		t.Errorf("unexpected args %q", args)
	}
}

func TestCommandNarrator(t *testing.T) {
	if err := (&CommandNarrator{Command: "true"}).Speak(context.Background(), "hello"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&CommandNarrator{Command: "/nonexistent/espeak"}).Speak(context.Background(), "hello"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestNewNarrator(t *testing.T) {
	if _, ok := NewNarrator(NarratorConfig{}, nil).(*EdgeNarrator); !ok {
		t.Error("expected edge narrator by default")
	}
	if _, ok := NewNarrator(NarratorConfig{Engine: "command"}, nil).(*CommandNarrator); !ok {
		t.Error("expected command narrator")
	}
	n := NewNarrator(NarratorConfig{Engine: "LOG"}, nil)
	if _, ok := n.(*LogNarrator); !ok {
		t.Fatal("expected log narrator")
	}
	if err := n.Speak(context.Background(), "hi"); err != nil {
		t.Errorf("log narrator failed: %v", err)
	}
}
