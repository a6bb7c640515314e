package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/scene-narrator/internal/detection"
	"github.com/eleven-am/scene-narrator/internal/llm"
	"github.com/eleven-am/scene-narrator/internal/shared"
	"github.com/eleven-am/scene-narrator/internal/vision"
)

// Task runs bounded object searches. While a search is scanning it owns the
// frame source; the caller must not read from it concurrently.
type Task struct {
	cfg      Config
	source   vision.Source
	detector detection.Detector
	llm      llm.Completer
	narrator Narrator
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	onFrame FrameHook
	current *Session
}

func NewTask(cfg Config, source vision.Source, detector detection.Detector, completer llm.Completer, narrator Narrator, logger *slog.Logger) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		cfg:      cfg.withDefaults(),
		source:   source,
		detector: detector,
		llm:      completer,
		narrator: narrator,
		logger:   logger.With("component", "search"),
		now:      time.Now,
	}
}

func (t *Task) OnFrame(hook FrameHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFrame = hook
}

// Active returns the running search, if any.
func (t *Task) Active() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Session{}, false
	}
	return *t.current, true
}

func (t *Task) setStatus(s *Session, status Status) {
	t.mu.Lock()
	s.Status = status
	if status.Terminal() {
		s.EndedAt = t.now()
		t.current = nil
	} else {
		snapshot := *s
		t.current = &snapshot
	}
	t.mu.Unlock()
}

// Run searches for objectName. The returned error is non-nil only when the
// camera fails; every other outcome is reported through Session.Status.
func (t *Task) Run(ctx context.Context, objectName string) (Session, error) {
	s := &Session{
		ID:        shared.NewID("srch_"),
		Requested: strings.TrimSpace(objectName),
		StartedAt: t.now(),
		Status:    StatusIdle,
	}
	log := t.logger.With("search_id", s.ID, "requested", s.Requested)

	t.setStatus(s, StatusNormalizing)
	target, ok := t.normalize(ctx, s.Requested, log)
	if !ok {
		t.setStatus(s, StatusAborted)
		return *s, nil
	}
	s.Target = target

	t.say(ctx, MessagePan)
	t.setStatus(s, StatusScanning)
	log = log.With("target", target)
	log.Info("scanning started")

	// the time bound covers the scan only, not normalization or the prompt
	deadline := t.now().Add(t.cfg.Timeout)
	for {
		if ctx.Err() != nil {
			log.Info("search cancelled", "frames", s.Frames)
			t.setStatus(s, StatusAborted)
			return *s, nil
		}
		if s.Frames >= t.cfg.MaxFrames || !t.now().Before(deadline) {
			log.Info("search timed out", "frames", s.Frames)
			t.setStatus(s, StatusTimedOut)
			t.say(ctx, fmt.Sprintf("Sorry, I could not find the %s. Please try again.", target))
			return *s, nil
		}

		frame, err := t.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.setStatus(s, StatusAborted)
				return *s, nil
			}
			t.setStatus(s, StatusAborted)
			return *s, fmt.Errorf("read frame: %w", err)
		}
		s.Frames++

		dets, err := t.detector.Detect(ctx, frame.Data)
		if err != nil {
			log.Debug("detector failed, skipping frame", "error", err)
			dets = nil
		} else if frame.Image != nil {
			dets = detection.Enrich(dets, frame.Image)
		}
		t.publish(frame, dets)

		for i := range dets {
			if dets[i].Label == target {
				match := dets[i]
				s.Match = &match
				t.found(ctx, s, frame, log)
				return *s, nil
			}
		}
	}
}

func (t *Task) publish(frame *vision.Frame, dets []detection.Detection) {
	t.mu.Lock()
	hook := t.onFrame
	t.mu.Unlock()
	if hook != nil {
		hook(frame, dets)
	}
}

// normalize maps free text onto the detector vocabulary. It narrates exactly
// once when it gives up.
func (t *Task) normalize(ctx context.Context, requested string, log *slog.Logger) (string, bool) {
	if requested == "" {
		t.say(ctx, MessageCannotFind)
		return "", false
	}

	if label := detection.NormalizeLabel(requested); detection.IsCanonical(label) {
		return label, true
	}

	answer, err := t.llm.Complete(ctx, normalizePrompt(requested), nil)
	if err != nil {
		log.Warn("normalization failed", "error", err)
		t.say(ctx, MessageNormalize)
		return "", false
	}

	label := detection.NormalizeLabel(answer)
	if label == "other" || !detection.IsCanonical(label) {
		log.Info("object outside detector vocabulary", "answer", answer)
		t.say(ctx, MessageCannotFind)
		return "", false
	}
	return label, true
}

func (t *Task) found(ctx context.Context, s *Session, frame *vision.Frame, log *slog.Logger) {
	fd := detection.FrameDescriptor{Width: frame.Width, Height: frame.Height, HorizontalFOV: t.cfg.HorizontalFOV}
	cx, cy := s.Match.Box.Center()
	s.Region = detection.DescribePosition(cx, cy, fd)
	log.Info("object found", "region", s.Region, "frames", s.Frames)

	t.say(ctx, MessageFound)

	guidance, err := t.llm.Complete(ctx, guidancePrompt(s.Target, s.Region), frame.Data)
	if err != nil {
		log.Warn("guidance failed", "error", err)
		t.say(ctx, fmt.Sprintf("The %s is at the %s of the view. %s", s.Target, s.Region, MessageNoGuidance))
	} else {
		s.Guidance = guidance
		t.say(ctx, guidance)
	}
	t.setStatus(s, StatusFound)
}

func (t *Task) say(ctx context.Context, text string) {
	if t.narrator == nil {
		return
	}
	if err := t.narrator.Speak(ctx, text); err != nil {
		t.logger.Warn("narration failed", "error", err)
	}
}

func normalizePrompt(object string) string {
	return "Match the following object \"" + object + "\" with a category in the following list to the best of your ability " +
		"and output that word in the list. Here is the list: " + strings.Join(detection.CanonicalClasses, ", ") +
		". If nothing matches, simply output \"other\". Your response should only be 1-2 words long. " +
		"Do not add any other words or formatting in your response."
}

func guidancePrompt(object, region string) string {
	return "Do not include any text formatting in your response. Using this image, find the following object: " + object + ".\n" +
		"Your task is to describe in a brief and friendly manner the location of the object and direct the user to it. " +
		"Be very specific and warn the user of any potential obstructions in their way if applicable. " +
		"Here is some additional information on the object's position: it is at the " + region + " of the camera view."
}
