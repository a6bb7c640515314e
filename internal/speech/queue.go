package speech

import (
	"context"
	"log/slog"
	"sync"
)

type queued struct {
	text string
	done chan error
}

// Queue serializes narrations on one worker goroutine so that queued summaries
// and blocking command replies never talk over each other.
type Queue struct {
	narrator Narrator
	log      *slog.Logger

	mu      sync.Mutex
	items   []queued
	ctx     context.Context
	cancel  context.CancelFunc
	playing bool
	gen     int
	onSpeak func(text string)
}

func NewQueue(narrator Narrator, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		narrator: narrator,
		log:      log.With("component", "speech-queue"),
	}
}

// OnSpeak registers a hook called with each text as its playback starts.
func (q *Queue) OnSpeak(fn func(text string)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onSpeak = fn
}

// Enqueue adds text without waiting for it to be spoken.
func (q *Queue) Enqueue(ctx context.Context, text string) {
	q.push(ctx, queued{text: text})
}

// Speak waits until text has been spoken, after anything already queued.
func (q *Queue) Speak(ctx context.Context, text string) error {
	done := make(chan error, 1)
	q.push(ctx, queued{text: text, done: done})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) push(ctx context.Context, item queued) {
	q.mu.Lock()
	idle := len(q.items) == 0 && !q.playing
	q.items = append(q.items, item)

	var gen int
	if idle {
		q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
		q.playing = true
		q.gen++
		gen = q.gen
	}
	q.mu.Unlock()

	if idle {
		go q.process(gen)
	}
}

func (q *Queue) process(gen int) {
	for {
		q.mu.Lock()
		if q.gen != gen {
			q.mu.Unlock()
			return
		}
		if len(q.items) == 0 {
			q.playing = false
			if q.cancel != nil {
				q.cancel()
				q.cancel = nil
			}
			q.mu.Unlock()
			return
		}

		item := q.items[0]
		q.items = q.items[1:]
		ctx := q.ctx
		onSpeak := q.onSpeak
		q.mu.Unlock()

		if onSpeak != nil {
			onSpeak(item.text)
		}

		err := q.narrator.Speak(ctx, item.text)
		if err != nil && ctx.Err() == nil {
			q.log.Warn("narration failed", "error", err)
		}
		if item.done != nil {
			item.done <- err
		}
	}
}

// Clear drops pending narrations and interrupts the current one.
func (q *Queue) Clear() {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.playing = false
	q.gen++
	q.mu.Unlock()

	for _, item := range pending {
		if item.done != nil {
			item.done <- context.Canceled
		}
	}
}

func (q *Queue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing || len(q.items) > 0
}
