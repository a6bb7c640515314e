package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/scene-narrator/internal/detection"
	"github.com/eleven-am/scene-narrator/internal/vision"
)

type fakeSource struct {
	reads  int
	failAt int
	onRead func(n int)
}

func (s *fakeSource) Next(ctx context.Context) (*vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.reads++
	if s.onRead != nil {
		s.onRead(s.reads)
	}
	if s.failAt > 0 && s.reads >= s.failAt {
		return nil, vision.ErrCameraRead
	}
	return &vision.Frame{Timestamp: int64(s.reads), Data: []byte{byte(s.reads)}, Width: 1280, Height: 720}, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeDetector struct {
	detectFn func(n int) ([]detection.Detection, error)
}

func (d *fakeDetector) Detect(ctx context.Context, jpeg []byte) ([]detection.Detection, error) {
	if d.detectFn == nil {
		return []detection.Detection{}, nil
	}
	return d.detectFn(int(jpeg[0]))
}

type mockCompleter struct {
	calls      int
	completeFn func(ctx context.Context, prompt string, image []byte) (string, error)
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string, image []byte) (string, error) {
	m.calls++
	if m.completeFn != nil {
		return m.completeFn(ctx, prompt, image)
	}
	return "", nil
}

type recordingNarrator struct {
	mu    sync.Mutex
	lines []string
}

func (n *recordingNarrator) Speak(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines = append(n.lines, text)
	return nil
}

func (n *recordingNarrator) Lines() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}

func cupAt(x1, y1, x2, y2 float64) []detection.Detection {
	return []detection.Detection{{Label: "cup", Confidence: 0.8, Box: detection.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}}}
}

func TestTask_UnknownObjectAborts(t *testing.T) {
	src := &fakeSource{}
	narrator := &recordingNarrator{}
	llm := &mockCompleter{completeFn: func(ctx context.Context, prompt string, image []byte) (string, error) {
		return "other", nil
	}}
	task := NewTask(Config{}, src, &fakeDetector{}, llm, narrator, nil)

	s, err := task.Run(context.Background(), "my grandmother's ring")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != StatusAborted {
		t.Errorf("expected aborted, got %s", s.Status)
	}
	if src.reads != 0 {
		t.Errorf("scanning must not start, got %d reads", src.reads)
	}
	lines := narrator.Lines()
	if len(lines) != 1 || lines[0] != MessageCannotFind {
		t.Errorf("expected exactly one narration, got %v", lines)
	}
}

func TestTask_NonCanonicalAnswerAborts(t *testing.T) {
	narrator := &recordingNarrator{}
	llm := &mockCompleter{completeFn: func(ctx context.Context, prompt string, image []byte) (string, error) {
		return "I think that is a ring", nil
	}}
	task := NewTask(Config{}, &fakeSource{}, &fakeDetector{}, llm, narrator, nil)

	s, _ := task.Run(context.Background(), "ring")
	if s.Status != StatusAborted || len(narrator.Lines()) != 1 {
		t.Errorf("expected single-narration abort, got %s %v", s.Status, narrator.Lines())
	}
}

func TestTask_NormalizationFailureAborts(t *testing.T) {
	narrator := &recordingNarrator{}
	llm := &mockCompleter{completeFn: func(ctx context.Context, prompt string, image []byte) (string, error) {
		return "", errors.New("quota")
	}}
	task := NewTask(Config{}, &fakeSource{}, &fakeDetector{}, llm, narrator, nil)

	s, err := task.Run(context.Background(), "the red mug")
	if err != nil {
		t.Fatalf("model failure must not be returned: %v", err)
	}
	if s.Status != StatusAborted {
		t.Errorf("expected aborted, got %s", s.Status)
	}
	if lines := narrator.Lines(); len(lines) != 1 || lines[0] != MessageNormalize {
		t.Errorf("unexpected narration %v", lines)
	}
}

func TestTask_FindsObject(t *testing.T) {
	src := &fakeSource{}
	narrator := &recordingNarrator{}
	det := &fakeDetector{detectFn: func(n int) ([]detection.Detection, error) {
		if n == 3 {
			return cupAt(1000, 100, 1100, 200), nil
		}
		return []detection.Detection{{Label: "person", Box: detection.Box{X2: 10, Y2: 10}}}, nil
	}}
	var guidanceImage []byte
	llm := &mockCompleter{completeFn: func(ctx context.Context, prompt string, image []byte) (string, error) {
		if strings.Contains(prompt, "Match the following object") {
			return "\"Cup.\"", nil
		}
		guidanceImage = image
		if !strings.Contains(prompt, "top right") {
			t.Errorf("guidance prompt missing region: %s", prompt)
		}
		return "The cup is up and to your right.", nil
	}}

	var hooked int
	task := NewTask(Config{}, src, det, llm, narrator, nil)
	task.OnFrame(func(frame *vision.Frame, dets []detection.Detection) { hooked++ })

	s, err := task.Run(context.Background(), "my coffee mug")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if s.Status != StatusFound || s.Target != "cup" {
		t.Fatalf("expected found cup, got %s %q", s.Status, s.Target)
	}
	if s.Frames != 3 || hooked != 3 {
		t.Errorf("expected 3 frames and hooks, got %d/%d", s.Frames, hooked)
	}
	if s.Region != "top right" {
		t.Errorf("unexpected region %q", s.Region)
	}
	if len(guidanceImage) != 1 || guidanceImage[0] != 3 {
		t.Errorf("guidance should use the matching frame, got %v", guidanceImage)
	}

	want := []string{MessagePan, MessageFound, "The cup is up and to your right."}
	lines := narrator.Lines()
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("narrations = %v, want %v", lines, want)
	}
	if _, active := task.Active(); active {
		t.Error("no search should be active after return")
	}
}

func TestTask_CanonicalNameSkipsModel(t *testing.T) {
	det := &fakeDetector{detectFn: func(n int) ([]detection.Detection, error) {
		return cupAt(600, 320, 680, 400), nil
	}}
	llm := &mockCompleter{completeFn: func(ctx context.Context, prompt string, image []byte) (string, error) {
		return "straight ahead", nil
	}}
	task := NewTask(Config{}, &fakeSource{}, det, llm, &recordingNarrator{}, nil)

	s, _ := task.Run(context.Background(), "Cup")
	if s.Status != StatusFound || s.Region != "center center" {
		t.Errorf("unexpected session %+v", s)
	}
	if llm.calls != 1 {
		t.Errorf("expected only the guidance call, got %d", llm.calls)
	}
}

func TestTask_TimesOutOnFrameBound(t *testing.T) {
	src := &fakeSource{}
	narrator := &recordingNarrator{}
	task := NewTask(Config{MaxFrames: 5, Timeout: time.Hour}, src, &fakeDetector{}, &mockCompleter{}, narrator, nil)

	s, err := task.Run(context.Background(), "chair")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != StatusTimedOut {
		t.Fatalf("expected timed out, got %s", s.Status)
	}
	if s.Frames != 5 || src.reads != 5 {
		t.Errorf("expected 5 frames, got %d/%d", s.Frames, src.reads)
	}
	lines := narrator.Lines()
	if len(lines) != 2 || !strings.Contains(lines[1], "could not find the chair") {
		t.Errorf("unexpected narration %v", lines)
	}
}

func TestTask_TimesOutOnDeadline(t *testing.T) {
	src := &fakeSource{}
	task := NewTask(Config{Timeout: 30 * time.Second, MaxFrames: 1000}, src, &fakeDetector{}, &mockCompleter{}, &recordingNarrator{}, nil)

	clock := time.Unix(1_700_000_000, 0)
	task.now = func() time.Time {
		clock = clock.Add(5 * time.Second)
		return clock
	}

	s, _ := task.Run(context.Background(), "chair")
	if s.Status != StatusTimedOut {
		t.Fatalf("expected timed out, got %s", s.Status)
	}
	if s.Frames >= 10 {
		t.Errorf("deadline should stop scanning early, got %d frames", s.Frames)
	}
	if s.Duration() <= 0 {
		t.Error("expected positive duration")
	}
}

type slowNarrator struct {
	recordingNarrator
	onSpeak func(text string)
}

func (n *slowNarrator) Speak(ctx context.Context, text string) error {
	n.onSpeak(text)
	return n.recordingNarrator.Speak(ctx, text)
}

func TestTask_DeadlineStartsWithScan(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	src := &fakeSource{}
	det := &fakeDetector{detectFn: func(n int) ([]detection.Detection, error) {
		return cupAt(600, 320, 680, 400), nil
	}}
	llm := &mockCompleter{completeFn: func(ctx context.Context, prompt string, image []byte) (string, error) {
		if strings.Contains(prompt, "Match the following object") {
			clock = clock.Add(25 * time.Second)
			return "cup", nil
		}
		return "Reach straight ahead.", nil
	}}
	narrator := &slowNarrator{onSpeak: func(text string) {
		if text == MessagePan {
			clock = clock.Add(6 * time.Second)
		}
	}}

	task := NewTask(Config{Timeout: 30 * time.Second}, src, det, llm, narrator, nil)
	task.now = func() time.Time { return clock }

	s, err := task.Run(context.Background(), "my coffee mug")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if s.Status != StatusFound {
		t.Fatalf("slow normalization must not eat the scan time, got %s", s.Status)
	}
	if s.Frames < 1 || src.reads < 1 {
		t.Errorf("expected at least one frame scanned, got %d/%d", s.Frames, src.reads)
	}
}

func TestTask_CancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{onRead: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	task := NewTask(Config{}, src, &fakeDetector{}, &mockCompleter{}, &recordingNarrator{}, nil)

	s, err := task.Run(ctx, "chair")
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if s.Status != StatusAborted {
		t.Errorf("expected aborted, got %s", s.Status)
	}
}

func TestTask_CameraFailureIsReturned(t *testing.T) {
	task := NewTask(Config{}, &fakeSource{failAt: 2}, &fakeDetector{}, &mockCompleter{}, &recordingNarrator{}, nil)

	s, err := task.Run(context.Background(), "chair")
	if !errors.Is(err, vision.ErrCameraRead) {
		t.Fatalf("expected camera error, got %v", err)
	}
	if s.Status != StatusAborted {
		t.Errorf("expected aborted, got %s", s.Status)
	}
}

func TestTask_DetectorErrorSkipsFrame(t *testing.T) {
	det := &fakeDetector{detectFn: func(n int) ([]detection.Detection, error) {
		if n < 3 {
			return nil, errors.New("detector busy")
		}
		return cupAt(0, 0, 50, 50), nil
	}}
	llm := &mockCompleter{completeFn: func(ctx context.Context, prompt string, image []byte) (string, error) {
		return "", errors.New("vision model down")
	}}
	narrator := &recordingNarrator{}
	task := NewTask(Config{}, &fakeSource{}, det, llm, narrator, nil)

	s, _ := task.Run(context.Background(), "cup")
	if s.Status != StatusFound || s.Frames != 3 {
		t.Fatalf("expected found on frame 3, got %s after %d", s.Status, s.Frames)
	}
	lines := narrator.Lines()
	if !strings.Contains(lines[len(lines)-1], MessageNoGuidance) {
		t.Errorf("expected fallback guidance, got %v", lines)
	}
}

func TestTask_ActiveWhileScanning(t *testing.T) {
	var task *Task
	var seen Session
	var ok bool
	src := &fakeSource{onRead: func(n int) {
		seen, ok = task.Active()
	}}
	task = NewTask(Config{MaxFrames: 1}, src, &fakeDetector{}, &mockCompleter{}, &recordingNarrator{}, nil)

	task.Run(context.Background(), "dog")
	if !ok || seen.Status != StatusScanning || seen.Target != "dog" {
		t.Errorf("expected scanning session while reading, got %+v %v", seen, ok)
	}
}
