package vision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSource_Next(t *testing.T) {
	data := encodeTestJPEG(t, 32, 24)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	defer server.Close()

	src := NewHTTPSource(Config{Source: server.URL, Width: 32, Height: 24, FrameRate: 1000}, nil)
	defer src.Close()

	frame, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Width != 32 || frame.Image == nil {
		t.Errorf("unexpected frame %+v", frame)
	}
}

func TestHTTPSource_FailureIsCameraRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewHTTPSource(Config{Source: server.URL, FrameRate: 1000}, nil)
	_, err := src.Next(context.Background())
	if !errors.Is(err, ErrCameraRead) {
		t.Errorf("expected ErrCameraRead, got %v", err)
	}
}

func TestFFmpegSource_MissingBinaryIsCameraRead(t *testing.T) {
	src := NewFFmpegSource(Config{Source: "/dev/null", FFmpegPath: "/nonexistent/ffmpeg"}, nil)
	defer src.Close()

	_, err := src.Next(context.Background())
	if !errors.Is(err, ErrCameraRead) {
		t.Errorf("expected ErrCameraRead, got %v", err)
	}
}

func TestFFmpegSource_Args(t *testing.T) {
	src := NewFFmpegSource(Config{Source: "/dev/video2", Width: 640, Height: 480}, nil)
	args := src.args()

	want := map[string]string{"-video_size": "640x480", "-i": "/dev/video2", "-vcodec": "mjpeg"}
	for i := 0; i < len(args)-1; i++ {
		if v, ok := want[args[i]]; ok {
			if args[i+1] != v {
				t.Errorf("%s = %s, want %s", args[i], args[i+1], v)
			}
			delete(want, args[i])
		}
	}
	if len(want) != 0 {
		t.Errorf("missing args %v", want)
	}
}

func TestNewSource(t *testing.T) {
	if _, ok := NewSource(Config{Source: "http://cam/shot.jpg"}, nil).(*HTTPSource); !ok {
		t.Error("expected HTTPSource for http url")
	}
	src, ok := NewSource(Config{}, nil).(*FFmpegSource)
	if !ok {
		t.Fatal("expected FFmpegSource by default")
	}
	if src.cfg.Source != "/dev/video0" {
		t.Errorf("expected default device, got %s", src.cfg.Source)
	}
}
