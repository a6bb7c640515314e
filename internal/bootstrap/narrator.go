package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/eleven-am/scene-narrator/internal/alert"
	"github.com/eleven-am/scene-narrator/internal/command"
	"github.com/eleven-am/scene-narrator/internal/control"
	"github.com/eleven-am/scene-narrator/internal/detection"
	"github.com/eleven-am/scene-narrator/internal/journal"
	"github.com/eleven-am/scene-narrator/internal/llm"
	"github.com/eleven-am/scene-narrator/internal/scene"
	"github.com/eleven-am/scene-narrator/internal/search"
	"github.com/eleven-am/scene-narrator/internal/speech"
	"github.com/eleven-am/scene-narrator/internal/stream"
	"github.com/eleven-am/scene-narrator/internal/vision"
	"go.uber.org/fx"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func ProvideLLM(cfg *Config) llm.Client {
	return llm.New(llm.Config{
		Provider:         cfg.LLMProvider,
		OllamaURL:        cfg.OllamaURL,
		Model:            cfg.OllamaModel,
		VisionModel:      cfg.OllamaVisionModel,
		EmbedModel:       cfg.OllamaEmbedModel,
		OpenAIKey:        cfg.OpenAIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		OpenAIModel:      cfg.OpenAIModel,
		OpenAIEmbedModel: cfg.OpenAIEmbedModel,
		Timeout:          cfg.LLMTimeout,
	})
}

func ProvideDetector(cfg *Config) *detection.Client {
	return detection.NewClient(detection.Config{
		URL:        cfg.DetectorURL,
		Confidence: cfg.DetectorConfidence,
	})
}

func ProvideSource(cfg *Config, logger *slog.Logger) vision.Source {
	return vision.NewSource(vision.Config{
		Source:     cfg.CameraSource,
		FFmpegPath: cfg.FFmpegPath,
		Width:      cfg.Width,
		Height:     cfg.Height,
		FrameRate:  cfg.FrameRate,
	}, logger)
}

// ProvideListener runs the configured recognizer, or reads typed lines from
// stdin when none is set.
func ProvideListener(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) speech.Listener {
	if cfg.STTCommand == "" {
		logger.Info("no speech recognizer configured, reading commands from stdin")
		return speech.NewReaderListener(os.Stdin, logger)
	}
	l := speech.NewCommandListener(speech.CommandConfig{
		Command: cfg.STTCommand,
		Args:    cfg.STTArgs,
	}, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return l.Close()
		},
	})
	return l
}

func ProvideCaptions(logger *slog.Logger) *stream.Captions {
	return stream.NewCaptions(logger)
}

func ProvideSpeechQueue(cfg *Config, captions *stream.Captions, logger *slog.Logger) *speech.Queue {
	narrator := speech.NewNarrator(speech.NarratorConfig{
		Engine:  cfg.TTSEngine,
		Voice:   cfg.TTSVoice,
		Player:  cfg.TTSPlayer,
		Command: cfg.TTSCommand,
	}, logger)
	q := speech.NewQueue(narrator, logger)
	q.OnSpeak(func(text string) {
		captions.Publish("narration", text)
	})
	return q
}

type LoopParams struct {
	fx.In

	Config      *Config
	Logger      *slog.Logger
	LLM         llm.Client
	Detector    *detection.Client
	Source      vision.Source
	Listener    speech.Listener
	Speech      *speech.Queue
	Broadcaster *stream.Broadcaster
	Captions    *stream.Captions
	Frames      *vision.Store
	Journal     *journal.Store
	Memory      *journal.Memory
}

func ProvideLoop(p LoopParams) *control.Loop {
	cfg := p.Config

	aggregator := scene.NewAggregator(scene.Config{
		DataInterval:    cfg.DataInterval,
		DirInterval:     cfg.DirInterval,
		SummaryInterval: cfg.SummaryInterval,
		MaxLogEntries:   cfg.MaxLogEntries,
	}, p.LLM, p.Logger)

	task := search.NewTask(search.Config{
		Timeout:       cfg.SearchTimeout,
		MaxFrames:     cfg.SearchMaxFrames,
		HorizontalFOV: cfg.HorizontalFOV,
	}, p.Source, p.Detector, p.LLM, p.Speech, p.Logger)

	deps := control.Deps{
		Source:      p.Source,
		Detector:    p.Detector,
		Completer:   p.LLM,
		Listener:    p.Listener,
		Speaker:     p.Speech,
		Aggregator:  aggregator,
		Summarizer:  scene.NewSummarizer(p.LLM, p.Logger),
		Dispatcher:  command.NewDispatcher(p.LLM, p.Logger),
		Search:      task,
		Broadcaster: p.Broadcaster,
		Captions:    p.Captions,
	}

	// optional stores stay nil interfaces when unconfigured
	if p.Frames != nil {
		deps.Frames = p.Frames
	}
	if p.Journal != nil {
		deps.Journal = p.Journal
	}
	if p.Memory != nil {
		deps.Memory = p.Memory
	}

	mailer := alert.NewSMTPMailer(alert.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if mailer.Configured() {
		deps.Notifier = alert.NewNotifier(mailer, cfg.AlertRetryDelay, p.Logger)
	} else {
		p.Logger.Info("smtp not configured, emergency alerts disabled")
	}

	return control.NewLoop(control.Config{
		Frame: detection.FrameDescriptor{
			Width:         cfg.Width,
			Height:        cfg.Height,
			HorizontalFOV: cfg.HorizontalFOV,
		},
		WakePhrase:       cfg.WakePhrase,
		CommandTimeout:   cfg.CommandTimeout,
		EmergencyContact: cfg.EmergencyContact,
	}, deps, p.Logger)
}

// StartLoop runs the session for the lifetime of the app. A camera failure
// ends the session and shuts the process down.
func StartLoop(lc fx.Lifecycle, shutdowner fx.Shutdowner, loop *control.Loop, queue *speech.Queue, hs *grpchealth.Server, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			hs.SetServingStatus(NarratorService, healthpb.HealthCheckResponse_SERVING)
			go func() {
				defer close(done)
				err := loop.Run(ctx)
				hs.SetServingStatus(NarratorService, healthpb.HealthCheckResponse_NOT_SERVING)
				if err != nil {
					logger.Error("narrator loop failed", "error", err)
					if serr := shutdowner.Shutdown(fx.ExitCode(1)); serr != nil {
						logger.Error("shutdown failed", "error", serr)
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			queue.Clear()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			case <-time.After(10 * time.Second):
				logger.Warn("narrator loop did not stop in time")
			}
			return nil
		},
	})
}

var NarratorModule = fx.Options(
	fx.Provide(
		ProvideLLM,
		ProvideDetector,
		ProvideSource,
		ProvideListener,
		ProvideCaptions,
		stream.NewBroadcaster,
		ProvideSpeechQueue,
		ProvideLoop,
	),
	fx.Invoke(StartLoop),
)
