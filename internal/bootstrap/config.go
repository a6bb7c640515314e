package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	GRPCAddr   string
	LogLevel   string

	CameraSource  string
	FFmpegPath    string
	Width         int
	Height        int
	HorizontalFOV float64
	FrameRate     int

	DetectorURL        string
	DetectorConfidence float64

	LLMProvider       string
	OllamaURL         string
	OllamaModel       string
	OllamaVisionModel string
	OllamaEmbedModel  string
	OpenAIKey         string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAIEmbedModel  string
	LLMTimeout        time.Duration

	STTCommand string
	STTArgs    []string
	TTSEngine  string
	TTSVoice   string
	TTSPlayer  string
	TTSCommand string
	WakePhrase string

	DataInterval    time.Duration
	DirInterval     time.Duration
	SummaryInterval time.Duration
	MaxLogEntries   int
	SearchTimeout   time.Duration
	SearchMaxFrames int
	CommandTimeout  time.Duration

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	EmergencyContact string
	AlertRetryDelay  time.Duration

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FrameTTL      time.Duration

	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantCollection string
}

// Overrides are the command-line flags; zero values leave the environment
// setting in place.
type Overrides struct {
	EnvFile       string
	Width         int
	Height        int
	HorizontalFOV float64
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig(o Overrides) (*Config, error) {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		GRPCAddr:   getEnv("GRPC_ADDR", ":50051"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		CameraSource:  getEnv("CAMERA_SOURCE", "/dev/video0"),
		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		Width:         getEnvInt("WEBCAM_WIDTH", 1280),
		Height:        getEnvInt("WEBCAM_HEIGHT", 720),
		HorizontalFOV: getEnvFloat("HORIZONTAL_FOV", 70.0),
		FrameRate:     getEnvInt("FRAME_RATE", 10),

		DetectorURL:        getEnv("DETECTOR_URL", "http://localhost:8000"),
		DetectorConfidence: getEnvFloat("DETECTOR_CONFIDENCE", 0.25),

		LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
		OllamaURL:         getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3.2"),
		OllamaVisionModel: getEnv("OLLAMA_VISION_MODEL", "llava"),
		OllamaEmbedModel:  getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", ""),
		OpenAIEmbedModel:  getEnv("OPENAI_EMBED_MODEL", ""),
		LLMTimeout:        getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		STTCommand: getEnv("STT_COMMAND", ""),
		STTArgs:    strings.Fields(getEnv("STT_ARGS", "")),
		TTSEngine:  getEnv("TTS_ENGINE", "edge"),
		TTSVoice:   getEnv("TTS_VOICE", "en-US-AriaNeural"),
		TTSPlayer:  getEnv("TTS_PLAYER", "aplay"),
		TTSCommand: getEnv("TTS_COMMAND", "espeak"),
		WakePhrase: getEnv("WAKE_PHRASE", "hello vision"),

		DataInterval:    getEnvDuration("DATA_INTERVAL", time.Second),
		DirInterval:     getEnvDuration("DIR_INTERVAL", 10*time.Second),
		SummaryInterval: getEnvDuration("SUMMARY_INTERVAL", 100*time.Second),
		MaxLogEntries:   getEnvInt("MAX_LOG_ENTRIES", 256),
		SearchTimeout:   getEnvDuration("SEARCH_TIMEOUT", 30*time.Second),
		SearchMaxFrames: getEnvInt("SEARCH_MAX_FRAMES", 300),
		CommandTimeout:  getEnvDuration("COMMAND_TIMEOUT", 8*time.Second),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:         getEnv("SMTP_FROM", ""),
		EmergencyContact: getEnv("EMERGENCY_CONTACT", ""),
		AlertRetryDelay:  getEnvDuration("ALERT_RETRY_DELAY", 2*time.Second),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		FrameTTL:      getEnvDuration("FRAME_TTL", 60*time.Second),

		QdrantHost:       getEnv("QDRANT_HOST", ""),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "scene_summaries"),
	}

	if o.Width > 0 && o.Height > 0 {
		cfg.Width, cfg.Height = o.Width, o.Height
	}
	if o.HorizontalFOV > 0 {
		cfg.HorizontalFOV = o.HorizontalFOV
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid webcam resolution %dx%d", c.Width, c.Height)
	}
	if c.HorizontalFOV <= 0 || c.HorizontalFOV >= 180 {
		return fmt.Errorf("invalid horizontal field of view %.1f", c.HorizontalFOV)
	}
	if c.DataInterval <= 0 || c.DirInterval <= 0 || c.SummaryInterval <= 0 {
		return fmt.Errorf("aggregation intervals must be positive")
	}
	if strings.EqualFold(c.LLMProvider, "openai") && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
