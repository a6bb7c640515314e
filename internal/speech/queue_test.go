package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingNarrator struct {
	mu      sync.Mutex
	spoken  []string
	delay   time.Duration
	blockOn string
	speakFn func(ctx context.Context, text string) error
}

func (n *recordingNarrator) Speak(ctx context.Context, text string) error {
	if text == n.blockOn {
		<-ctx.Done()
		return ctx.Err()
	}
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	n.spoken = append(n.spoken, text)
	n.mu.Unlock()
	if n.speakFn != nil {
		return n.speakFn(ctx, text)
	}
	return nil
}

func (n *recordingNarrator) Spoken() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.spoken...)
}

func TestQueue_SpeakWaitsForQueuedItems(t *testing.T) {
	narrator := &recordingNarrator{delay: 10 * time.Millisecond}
	q := NewQueue(narrator, nil)
	ctx := context.Background()

	var hooked []string
	var mu sync.Mutex
	q.OnSpeak(func(text string) {
		mu.Lock()
		hooked = append(hooked, text)
		mu.Unlock()
	})

	q.Enqueue(ctx, "summary one")
	q.Enqueue(ctx, "summary two")
	if err := q.Speak(ctx, "command reply"); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	spoken := narrator.Spoken()
	want := []string{"summary one", "summary two", "command reply"}
	if len(spoken) != len(want) {
		t.Fatalf("spoken = %v, want %v", spoken, want)
	}
	for i := range want {
		if spoken[i] != want[i] {
			t.Errorf("spoken[%d] = %q, want %q", i, spoken[i], want[i])
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hooked) != 3 {
		t.Errorf("expected 3 hook calls, got %v", hooked)
	}
}

func TestQueue_SpeakReturnsNarratorError(t *testing.T) {
	failure := errors.New("no audio device")
	q := NewQueue(&recordingNarrator{speakFn: func(ctx context.Context, text string) error {
		return failure
	}}, nil)

	if err := q.Speak(context.Background(), "hello"); !errors.Is(err, failure) {
		t.Errorf("expected narrator error, got %v", err)
	}
}

func TestQueue_Clear(t *testing.T) {
	narrator := &recordingNarrator{blockOn: "long summary"}
	q := NewQueue(narrator, nil)
	ctx := context.Background()

	q.Enqueue(ctx, "long summary")
	errCh := make(chan error, 1)
	go func() { errCh <- q.Speak(ctx, "pending reply") }()

	time.Sleep(20 * time.Millisecond)
	if !q.IsPlaying() {
		t.Fatal("expected queue to be playing")
	}
	q.Clear()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected canceled, got %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Speak did not return after Clear")
	}
	if q.IsPlaying() {
		t.Error("expected idle queue after Clear")
	}

	if err := q.Speak(ctx, "after clear"); err != nil {
		t.Fatalf("queue unusable after Clear: %v", err)
	}
}

func TestQueue_SpeakContextCancelled(t *testing.T) {
	q := NewQueue(&recordingNarrator{delay: time.Second}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := q.Speak(ctx, "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	q.Clear()
}
