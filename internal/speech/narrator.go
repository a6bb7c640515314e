package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

// Player plays raw 16-bit little-endian stereo PCM.
type Player interface {
	Play(ctx context.Context, pcm io.Reader, sampleRate int) error
}

// CommandPlayer pipes PCM into an aplay-compatible command.
type CommandPlayer struct {
	Command string
}

func (p *CommandPlayer) args(sampleRate int) []string {
	return []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "2", "-r", strconv.Itoa(sampleRate), "-"}
}

func (p *CommandPlayer) Play(ctx context.Context, pcm io.Reader, sampleRate int) error {
	command := p.Command
	if command == "" {
		command = "aplay"
	}
	cmd := exec.CommandContext(ctx, command, p.args(sampleRate)...)
	cmd.Stdin = pcm
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("play audio: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type EdgeSynthesizer struct {
	Voice string
}

func (s *EdgeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	voice := s.Voice
	if voice == "" {
		voice = "en-US-AriaNeural"
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		communicate, err := edge_tts.New(voice)
		if err != nil {
			ch <- result{err: fmt.Errorf("create edge tts: %w", err)}
			return
		}
		defer communicate.Close()

		data, err := communicate.Output(text)
		ch <- result{data: data, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("edge tts synthesis: %w", r.err)
		}
		return r.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EdgeNarrator synthesizes speech and plays the decoded PCM.
type EdgeNarrator struct {
	synth  Synthesizer
	player Player
	logger *slog.Logger
}

func NewEdgeNarrator(synth Synthesizer, player Player, logger *slog.Logger) *EdgeNarrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &EdgeNarrator{
		synth:  synth,
		player: player,
		logger: logger.With("component", "edge-narrator"),
	}
}

func (n *EdgeNarrator) Speak(ctx context.Context, text string) error {
	audio, err := n.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return fmt.Errorf("edge tts returned no audio")
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(audio))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}

	n.logger.Debug("playing narration", "chars", len(text), "sample_rate", decoder.SampleRate())
	return n.player.Play(ctx, decoder, decoder.SampleRate())
}

// CommandNarrator runs a local TTS program such as espeak with the text as
// its last argument.
type CommandNarrator struct {
	Command string
	Args    []string
}

func (n *CommandNarrator) Speak(ctx context.Context, text string) error {
	command := n.Command
	if command == "" {
		command = "espeak"
	}
	args := append(append([]string(nil), n.Args...), text)
	if err := exec.CommandContext(ctx, command, args...).Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run %s: %w", command, err)
	}
	return nil
}

// LogNarrator only logs, for headless runs.
type LogNarrator struct {
	Logger *slog.Logger
}

func (n *LogNarrator) Speak(ctx context.Context, text string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("narration", "text", text)
	return nil
}

type NarratorConfig struct {
	Engine  string
	Voice   string
	Player  string
	Command string
	Args    []string
}

// NewNarrator picks the engine: "edge" (default), "command" or "log".
func NewNarrator(cfg NarratorConfig, logger *slog.Logger) Narrator {
	switch strings.ToLower(cfg.Engine) {
	case "command":
		return &CommandNarrator{Command: cfg.Command, Args: cfg.Args}
	case "log":
		return &LogNarrator{Logger: logger}
	default:
		return NewEdgeNarrator(&EdgeSynthesizer{Voice: cfg.Voice}, &CommandPlayer{Command: cfg.Player}, logger)
	}
}
