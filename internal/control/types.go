package control

import (
	"context"
	"time"

	"github.com/eleven-am/scene-narrator/internal/alert"
	"github.com/eleven-am/scene-narrator/internal/command"
	"github.com/eleven-am/scene-narrator/internal/detection"
	"github.com/eleven-am/scene-narrator/internal/journal"
	"github.com/eleven-am/scene-narrator/internal/llm"
	"github.com/eleven-am/scene-narrator/internal/scene"
	"github.com/eleven-am/scene-narrator/internal/search"
	"github.com/eleven-am/scene-narrator/internal/speech"
	"github.com/eleven-am/scene-narrator/internal/vision"
)

const (
	MessageReady        = "I am ready"
	MessageUnrecognized = "Sorry, I did not understand that. Please try again."
	MessageNoCommand    = "I did not hear a command."
	MessageQuestionFail = "An error occurred while processing your question."
	MessageSummaryFail  = "Sorry, I could not put together a summary of the scene."
	MessageDirFail      = "Sorry, I am having trouble describing the scene in detail right now."
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseObserving Phase = "observing"
	PhaseListening Phase = "listening"
	PhaseHandling  Phase = "handling"
	PhaseSearching Phase = "searching"
	PhaseStopped   Phase = "stopped"
)

// Stats is a point-in-time view of the loop for health reporting.
type Stats struct {
	SessionID string    `json:"session_id"`
	Phase     Phase     `json:"phase"`
	Running   bool      `json:"running"`
	Ticks     uint64    `json:"ticks"`
	Summaries uint64    `json:"summaries"`
	Intents   uint64    `json:"intents"`
	Searches  uint64    `json:"searches"`
	StartedAt time.Time `json:"started_at"`
	LastTick  time.Time `json:"last_tick"`
	LastError string    `json:"last_error,omitempty"`
}

// Speaker is the narration queue: Enqueue for background narration, Speak for
// replies that must finish before the loop moves on.
type Speaker interface {
	Enqueue(ctx context.Context, text string)
	Speak(ctx context.Context, text string) error
}

type FramePublisher interface {
	Publish(frame []byte)
}

type FrameStore interface {
	StoreFrame(ctx context.Context, frame *vision.Frame) error
}

type CaptionSink interface {
	Publish(kind, text string)
}

type Journal interface {
	RecordSummary(ctx context.Context, r *journal.SummaryRecord) error
	RecordIntent(ctx context.Context, r *journal.IntentRecord) error
	RecordSearch(ctx context.Context, r *journal.SearchRecord) error
	RecordAlert(ctx context.Context, r *journal.AlertRecord) error
}

type Memory interface {
	Remember(ctx context.Context, sessionID, text string, at time.Time) error
	Recall(ctx context.Context, query string, limit int) ([]journal.Recollection, error)
}

// Deps are the collaborators of one session. Everything below Broadcaster is
// optional.
type Deps struct {
	Source     vision.Source
	Detector   detection.Detector
	Completer  llm.Completer
	Listener   speech.Listener
	Speaker    Speaker
	Aggregator *scene.Aggregator
	Summarizer *scene.Summarizer
	Dispatcher *command.Dispatcher
	Search     *search.Task

	Broadcaster FramePublisher
	Captions    CaptionSink
	Frames      FrameStore
	Notifier    *alert.Notifier
	Journal     Journal
	Memory      Memory
}

type Config struct {
	SessionID        string
	Frame            detection.FrameDescriptor
	WakePhrase       string
	Greeting         string
	CommandTimeout   time.Duration
	EmergencyContact string
	RecallLimit      int
	// ListenBackoff is the pause after an empty recognition result.
	ListenBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Frame.Width <= 0 {
		c.Frame.Width = 1280
	}
	if c.Frame.Height <= 0 {
		c.Frame.Height = 720
	}
	if c.Frame.HorizontalFOV <= 0 {
		c.Frame.HorizontalFOV = 70
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 8 * time.Second
	}
	if c.RecallLimit <= 0 {
		c.RecallLimit = 3
	}
	if c.ListenBackoff <= 0 {
		c.ListenBackoff = 200 * time.Millisecond
	}
	return c
}

type voiceEvent struct {
	wake bool
	// text is the command spoken after the wake phrase, or the whole
	// utterance when there was no wake phrase.
	text string
}
