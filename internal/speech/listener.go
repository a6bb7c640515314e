package speech

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ReaderListener treats every line of r as one utterance. Once r is exhausted
// Listen blocks until ctx is done.
type ReaderListener struct {
	r      io.Reader
	logger *slog.Logger

	once  sync.Once
	lines chan string
}

func NewReaderListener(r io.Reader, logger *slog.Logger) *ReaderListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaderListener{
		r:      r,
		logger: logger.With("component", "reader-listener"),
		lines:  make(chan string, 16),
	}
}

func (l *ReaderListener) Listen(ctx context.Context) string {
	l.once.Do(func() {
		go func() {
			defer close(l.lines)
			readTranscripts(l.r, l.lines, l.logger)
		}()
	})

	select {
	case line, ok := <-l.lines:
		if !ok {
			<-ctx.Done()
			return ""
		}
		return line
	case <-ctx.Done():
		return ""
	}
}

type CommandConfig struct {
	Command      string
	Args         []string
	RestartDelay time.Duration
}

// CommandListener runs an external recogniser and reads one transcript per
// stdout line, either plain text or a JSON event. The process is started on
// the first Listen and restarted after it exits.
type CommandListener struct {
	cfg    CommandConfig
	logger *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	lines     chan string
	lastStart time.Time
	failing   bool
	closed    bool
	closing   chan struct{}
}

func NewCommandListener(cfg CommandConfig, logger *slog.Logger) *CommandListener {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	return &CommandListener{
		cfg:     cfg,
		logger:  logger.With("component", "command-listener", "command", cfg.Command),
		closing: make(chan struct{}),
	}
}

func (l *CommandListener) Listen(ctx context.Context) string {
	lines, err := l.ensureStarted(ctx)
	if err != nil {
		return ""
	}

	select {
	case line, ok := <-lines:
		if !ok {
			l.mu.Lock()
			if l.lines == lines {
				l.lines = nil
			}
			l.mu.Unlock()
			return ""
		}
		return line
	case <-ctx.Done():
		return ""
	}
}

var errListenerClosed = errors.New("listener closed")

// ensureStarted returns the running recogniser's transcripts, starting it if
// needed. Restarts are spaced by RestartDelay; the wait happens without the
// lock so Close is never held up.
func (l *CommandListener) ensureStarted(ctx context.Context) (chan string, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, errListenerClosed
		}
		if l.lines != nil {
			lines := l.lines
			l.mu.Unlock()
			return lines, nil
		}

		wait := l.cfg.RestartDelay - time.Since(l.lastStart)
		if l.lastStart.IsZero() || wait <= 0 {
			break
		}
		l.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-l.closing:
			return nil, errListenerClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer l.mu.Unlock()

	l.lastStart = time.Now()
	lines, err := l.start()
	if err != nil {
		if !l.failing {
			l.logger.Warn("recogniser unavailable", "error", err)
		}
		l.failing = true
		return nil, err
	}
	l.failing = false
	l.logger.Info("recogniser started")
	return lines, nil
}

// start must be called with l.mu held.
func (l *CommandListener) start() (chan string, error) {
	cmd := exec.Command(l.cfg.Command, l.cfg.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recogniser: %w", err)
	}

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		readTranscripts(stdout, lines, l.logger)
		if err := cmd.Wait(); err != nil {
			l.logger.Warn("recogniser exited", "error", err)
		}
	}()
	go l.logStderr(stderr)

	l.cmd = cmd
	l.lines = lines
	return lines, nil
}

func (l *CommandListener) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			l.logger.Debug("recogniser output", "line", line)
		}
	}
}

func (l *CommandListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.closing)
	if l.cmd != nil && l.cmd.Process != nil {
		_ = l.cmd.Process.Kill()
	}
	return nil
}

func readTranscripts(r io.Reader, out chan<- string, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text, ok := parseTranscript(scanner.Text())
		if !ok {
			continue
		}
		out <- text
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("transcript read failed", "error", err)
	}
}

type transcriptEvent struct {
	Type       string          `json:"type"`
	Event      string          `json:"event"`
	Text       string          `json:"text"`
	Transcript string          `json:"transcript"`
	Utterance  string          `json:"utterance"`
	Final      *bool           `json:"final"`
	Payload    json.RawMessage `json:"payload"`
}

type transcriptPayload struct {
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
	Utterance  string `json:"utterance"`
}

// parseTranscript accepts plain lines and final JSON transcript events.
// Partial results are skipped.
func parseTranscript(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	if strings.HasPrefix(line, "{") {
		var evt transcriptEvent
		if err := json.Unmarshal([]byte(line), &evt); err == nil {
			if evt.Final != nil && !*evt.Final {
				return "", false
			}
			if strings.Contains(strings.ToLower(evt.Type+evt.Event), "partial") {
				return "", false
			}
			text := firstNonEmpty(evt.Text, evt.Transcript, evt.Utterance)
			if text == "" && len(evt.Payload) > 0 {
				var payload transcriptPayload
				if err := json.Unmarshal(evt.Payload, &payload); err == nil {
					text = firstNonEmpty(payload.Text, payload.Transcript, payload.Utterance)
				}
			}
			if text == "" {
				return "", false
			}
			return strings.ToLower(text), true
		}
	}
	return strings.ToLower(line), true
}

func firstNonEmpty(parts ...string) string {
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			return s
		}
	}
	return ""
}
