package scene

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/scene-narrator/internal/detection"
	"github.com/eleven-am/scene-narrator/internal/llm"
)

const DirectionalPrompt = "I am a blind person that needs to know details of this image with defining features " +
	"such as specific objects, their color, and distance from my position. You are a helpful agent that will give " +
	"a vivid and detailed description of the situation. If there are any people and their faces visible try to " +
	"guess their emotion based on their face. Please provide an educated guess on what actions are happening in " +
	"this scene as well as a guess on what may happen next. Do not use any text formatting."

// Aggregator turns per-frame detections into the data and directional window
// logs and decides when a summary is due. The three timers are independent.
type Aggregator struct {
	cfg      Config
	narrator llm.Completer
	logger   *slog.Logger

	mu               sync.Mutex
	started          bool
	dataLog          []Entry
	dirLog           []Entry
	lastDataFlush    time.Time
	lastDirFlush     time.Time
	lastSummaryFlush time.Time
	previousSummary  string
	latestScene      string
	dropped          int
}

func NewAggregator(cfg Config, narrator llm.Completer, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cfg:      cfg.withDefaults(),
		narrator: narrator,
		logger:   logger.With("component", "aggregator"),
	}
}

// Observe folds one frame of evidence into the aggregation state. The first
// call seeds all timers, so nothing flushes on it.
func (a *Aggregator) Observe(ctx context.Context, ev detection.Evidence, now time.Time) Observation {
	obs := Observation{
		Summary:      detection.SceneSummary(ev.Detections),
		Descriptions: detection.DescribeAll(ev.Detections, ev.Frame),
	}

	a.mu.Lock()
	if !a.started {
		a.started = true
		a.lastDataFlush = now
		a.lastDirFlush = now
		a.lastSummaryFlush = now
	}
	a.latestScene = obs.Summary

	if now.Sub(a.lastDataFlush) >= a.cfg.DataInterval {
		a.dataLog = a.appendCapped(a.dataLog, Entry{At: now, Text: composite(obs)})
		a.lastDataFlush = now
		obs.DataFlushed = true
	}

	dirDue := now.Sub(a.lastDirFlush) >= a.cfg.DirInterval
	if dirDue {
		// advanced before the call so a failing narrator is retried next window
		a.lastDirFlush = now
	}
	a.mu.Unlock()

	if dirDue {
		text, err := a.directional(ctx, ev.Image)
		if err != nil {
			a.logger.Warn("directional narration failed", "error", err)
			obs.DirErr = err
		} else {
			a.mu.Lock()
			a.dirLog = a.appendCapped(a.dirLog, Entry{At: now, Text: text})
			a.mu.Unlock()
			obs.DirFlushed = true
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if now.Sub(a.lastSummaryFlush) >= a.cfg.SummaryInterval {
		obs.Trigger = &SummaryTrigger{
			At:              now,
			DataLog:         append([]Entry(nil), a.dataLog...),
			DirLog:          append([]Entry(nil), a.dirLog...),
			PreviousSummary: a.previousSummary,
		}
		a.dataLog = nil
		a.dirLog = nil
		a.lastSummaryFlush = now
		a.logger.Info("summary window closed",
			"data_entries", len(obs.Trigger.DataLog),
			"dir_entries", len(obs.Trigger.DirLog))
	}

	return obs
}

func (a *Aggregator) directional(ctx context.Context, image []byte) (string, error) {
	if a.narrator == nil {
		return "", llm.ErrEmptyResponse
	}
	return a.narrator.Complete(ctx, DirectionalPrompt, image)
}

// appendCapped drops the oldest entry once the log is full. Callers hold mu.
func (a *Aggregator) appendCapped(log []Entry, e Entry) []Entry {
	if len(log) >= a.cfg.MaxLogEntries {
		log = append(log[:0], log[1:]...)
		a.dropped++
	}
	return append(log, e)
}

// RecordSummary stores the Summarizer output as the carry-over for the next window.
func (a *Aggregator) RecordSummary(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.mu.Lock()
	a.previousSummary = text
	a.mu.Unlock()
}

func (a *Aggregator) PreviousSummary() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.previousSummary
}

// LatestScene is the per-class count of the most recently observed frame.
func (a *Aggregator) LatestScene() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latestScene
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		DataLog:          append([]Entry(nil), a.dataLog...),
		DirLog:           append([]Entry(nil), a.dirLog...),
		LastDataFlush:    a.lastDataFlush,
		LastDirFlush:     a.lastDirFlush,
		LastSummaryFlush: a.lastSummaryFlush,
		PreviousSummary:  a.previousSummary,
		LatestScene:      a.latestScene,
		Dropped:          a.dropped,
	}
}

func composite(obs Observation) string {
	if len(obs.Descriptions) == 0 {
		return "Here is the scene summary: no objects detected."
	}
	texts := make([]string, len(obs.Descriptions))
	for i, d := range obs.Descriptions {
		texts[i] = d.Text()
	}
	return "Here is the scene summary: " + obs.Summary +
		". Here is a more detailed description of the objects mentioned: " + strings.Join(texts, " ")
}
