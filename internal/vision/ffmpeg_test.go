package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"testing"
	"time"
)

// fakeFFmpegEnv makes the test binary act as ffmpeg: it writes one JPEG to
// stdout and then hangs, like a stalled capture device.
const fakeFFmpegEnv = "NARRATOR_FAKE_FFMPEG"

func TestMain(m *testing.M) {
	if os.Getenv(fakeFFmpegEnv) == "stall" {
		var buf bytes.Buffer
		_ = jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 24)), nil)
		os.Stdout.Write(buf.Bytes())
		time.Sleep(time.Hour)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func stalledSource(t *testing.T) *FFmpegSource {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("no test executable: %v", err)
	}
	t.Setenv(fakeFFmpegEnv, "stall")
	return NewFFmpegSource(Config{Source: "/dev/video9", FFmpegPath: exe, Width: 32, Height: 24}, nil)
}

func TestFFmpegSource_CancelWhileStalled(t *testing.T) {
	src := stalledSource(t)

	frame, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if frame.Width != 32 || frame.Height != 24 {
		t.Errorf("unexpected frame size %dx%d", frame.Width, frame.Height)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = src.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if errors.Is(err, ErrCameraRead) {
		t.Error("a cancelled wait is not a camera failure")
	}
	if waited := time.Since(start); waited > 2*time.Second {
		t.Errorf("Next ignored cancellation for %v", waited)
	}

	closed := make(chan error, 1)
	go func() { closed <- src.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a stalled ffmpeg")
	}

	if _, err := src.Next(context.Background()); !errors.Is(err, ErrCameraRead) {
		t.Errorf("expected ErrCameraRead after close, got %v", err)
	}
}
