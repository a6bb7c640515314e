package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/scene-narrator/internal/detection"
	"github.com/eleven-am/scene-narrator/internal/journal"
	"github.com/eleven-am/scene-narrator/internal/scene"
	"github.com/eleven-am/scene-narrator/internal/speech"
	"github.com/eleven-am/scene-narrator/internal/vision"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Loop is the perception loop of one session. Detection and aggregation run
// in order on the tick; listening and summarizing run on their own workers
// and talk to the tick over channels.
type Loop struct {
	cfg    Config
	deps   Deps
	wake   *speech.WakeMatcher
	logger *slog.Logger
	now    func() time.Time

	voice    chan voiceEvent
	triggers chan *scene.SummaryTrigger

	// tick-owned
	lastFrame  *vision.Frame
	dirFailing bool

	mu           sync.Mutex
	stats        Stats
	cancelSearch context.CancelFunc
}

func NewLoop(cfg Config, deps Deps, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	wake := speech.NewWakeMatcher(cfg.WakePhrase)
	if cfg.Greeting == "" {
		cfg.Greeting = "Hello, I am VisuAI. I will be your new eyes. If you have any questions, want me to find an object, " +
			"or have an emergency, just say " + wake.Phrase() + "."
	}

	l := &Loop{
		cfg:      cfg,
		deps:     deps,
		wake:     wake,
		logger:   logger.With("component", "loop", "session_id", cfg.SessionID),
		now:      time.Now,
		voice:    make(chan voiceEvent, 8),
		triggers: make(chan *scene.SummaryTrigger, 4),
		stats:    Stats{SessionID: cfg.SessionID, Phase: PhaseIdle},
	}
	if deps.Search != nil {
		deps.Search.OnFrame(func(frame *vision.Frame, _ []detection.Detection) {
			l.publish(frame)
		})
	}
	return l
}

func (l *Loop) SessionID() string {
	return l.cfg.SessionID
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) setPhase(p Phase) {
	l.mu.Lock()
	l.stats.Phase = p
	l.mu.Unlock()
}

// Run drives the session until ctx is cancelled or the camera fails. Camera
// failure is the only error returned.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.stats.Running || l.stats.Phase == PhaseStopped {
		l.mu.Unlock()
		return errors.New("loop already started")
	}
	l.stats.Running = true
	l.stats.StartedAt = l.now()
	l.stats.Phase = PhaseObserving
	l.mu.Unlock()

	l.logger.Info("session started", "width", l.cfg.Frame.Width, "height", l.cfg.Frame.Height,
		"fov", l.cfg.Frame.HorizontalFOV)
	l.deps.Speaker.Enqueue(ctx, l.cfg.Greeting)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	if l.deps.Listener != nil {
		g.Go(func() error {
			return l.listen(gctx)
		})
	}
	g.Go(func() error {
		for trigger := range l.triggers {
			l.summarize(gctx, trigger)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		defer close(l.triggers)
		return l.perceive(gctx)
	})

	err := g.Wait()

	if cerr := l.deps.Source.Close(); cerr != nil {
		l.logger.Warn("closing camera failed", "error", cerr)
	}

	l.mu.Lock()
	l.stats.Running = false
	l.stats.Phase = PhaseStopped
	if err != nil {
		l.stats.LastError = err.Error()
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Error("session ended", "error", err)
		return err
	}
	l.logger.Info("session stopped")
	return nil
}

func (l *Loop) perceive(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// tick processes one frame, then handles at most one pending voice event.
func (l *Loop) tick(ctx context.Context) error {
	frame, err := l.deps.Source.Next(ctx)
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	now := l.now()
	frame.SessionID = l.cfg.SessionID
	l.lastFrame = frame

	dets, err := l.deps.Detector.Detect(ctx, frame.Data)
	if err != nil {
		l.logger.Debug("detector failed, skipping aggregation", "error", err)
	} else {
		if frame.Image != nil {
			dets = detection.Enrich(dets, frame.Image)
		}
		l.observe(ctx, frame, dets, now)
	}

	l.publish(frame)

	l.mu.Lock()
	l.stats.Ticks++
	l.stats.LastTick = now
	l.mu.Unlock()

	select {
	case ev := <-l.voice:
		return l.handleVoice(ctx, ev)
	default:
		return nil
	}
}

func (l *Loop) observe(ctx context.Context, frame *vision.Frame, dets []detection.Detection, now time.Time) {
	fd := l.cfg.Frame
	if frame.Width > 0 && frame.Height > 0 {
		fd.Width, fd.Height = frame.Width, frame.Height
	}
	obs := l.deps.Aggregator.Observe(ctx, detection.Evidence{
		Detections: dets,
		Frame:      fd,
		Image:      frame.Data,
		CapturedAt: frame.Time(),
	}, now)

	if obs.DataFlushed && l.deps.Frames != nil {
		if err := l.deps.Frames.StoreFrame(ctx, frame); err != nil {
			l.logger.Warn("storing frame failed", "error", err)
		}
	}

	switch {
	case obs.DirErr != nil && !l.dirFailing:
		l.dirFailing = true
		l.deps.Speaker.Enqueue(ctx, MessageDirFail)
	case obs.DirFlushed:
		l.dirFailing = false
	}

	if obs.Trigger != nil {
		select {
		case l.triggers <- obs.Trigger:
		case <-ctx.Done():
		}
	}
}

func (l *Loop) publish(frame *vision.Frame) {
	if l.deps.Broadcaster != nil && frame != nil && len(frame.Data) > 0 {
		l.deps.Broadcaster.Publish(frame.Data)
	}
}

// summarize runs on the summary worker so a slow model never stalls the tick.
func (l *Loop) summarize(ctx context.Context, trigger *scene.SummaryTrigger) {
	text, err := l.deps.Summarizer.SummarizeTrigger(ctx, trigger)
	if err != nil {
		l.logger.Warn("summary failed", "error", err)
		l.deps.Speaker.Enqueue(ctx, MessageSummaryFail)
		return
	}

	l.deps.Aggregator.RecordSummary(text)
	l.deps.Speaker.Enqueue(ctx, text)

	l.mu.Lock()
	l.stats.Summaries++
	l.mu.Unlock()
	l.logger.Info("summary narrated", "data_entries", len(trigger.DataLog), "dir_entries", len(trigger.DirLog))

	if l.deps.Journal != nil {
		err := l.deps.Journal.RecordSummary(ctx, &journal.SummaryRecord{
			SessionID:   l.cfg.SessionID,
			Text:        text,
			DataEntries: len(trigger.DataLog),
			DirEntries:  len(trigger.DirLog),
			Dropped:     l.deps.Aggregator.Snapshot().Dropped,
			CreatedAt:   trigger.At,
		})
		if err != nil {
			l.logger.Warn("journal summary failed", "error", err)
		}
	}
	if l.deps.Memory != nil && text != scene.NothingNewSummary {
		if err := l.deps.Memory.Remember(ctx, l.cfg.SessionID, text, trigger.At); err != nil {
			l.logger.Warn("remembering summary failed", "error", err)
		}
	}
}
