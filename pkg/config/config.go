package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Hosted model provider identifiers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderGCP    = "gcp"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Backend       BackendConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	LLM           LLMConfig
	Transcription TranscriptionConfig
	Chat          ChatConfig
	Redis         RedisConfig
	Metrics       MetricsConfig
	Tracing       TracingConfig
}

// BackendConfig points at the student-information backend.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// JWTConfig optionally enables signature verification of bearer tokens issued by the
// external token service. An empty secret means claims are read without verification.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LLMConfig selects and tunes the hosted conversational model.
type LLMConfig struct {
	Provider            string
	GeminiAPIKey        string
	GeminiModel         string
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIBaseURL       string
	Timeout             time.Duration
	Temperature         float64
	MaxOutputTokens     int
	StartupProbe        bool
	IntentModelFallback bool
}

// TranscriptionConfig orders the hosted speech-to-text providers.
type TranscriptionConfig struct {
	Primary            string
	Secondary          string
	Language           string
	GCPCredentialsFile string
}

// ChatConfig bounds per-session state.
type ChatConfig struct {
	HistoryLimit   int
	SessionIdleTTL time.Duration
	MaxUploadBytes int64
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// TracingConfig governs OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool
	Endpoint     string
	SampleRatio  float64
	ServiceName  string
	OTLPInsecure bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL: strings.TrimRight(v.GetString("BACKEND_API_URL"), "/"),
		Timeout: parseDuration(v.GetString("BACKEND_TIMEOUT"), 10*time.Second),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.LLM = LLMConfig{
		Provider:            strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
		GeminiAPIKey:        v.GetString("GEMINI_API_KEY"),
		GeminiModel:         v.GetString("GEMINI_MODEL"),
		OpenAIAPIKey:        v.GetString("OPENAI_API_KEY"),
		OpenAIModel:         v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL:       v.GetString("OPENAI_BASE_URL"),
		Timeout:             parseDuration(v.GetString("LLM_TIMEOUT"), 30*time.Second),
		Temperature:         v.GetFloat64("LLM_TEMPERATURE"),
		MaxOutputTokens:     v.GetInt("LLM_MAX_OUTPUT_TOKENS"),
		StartupProbe:        v.GetBool("LLM_STARTUP_PROBE"),
		IntentModelFallback: v.GetBool("INTENT_MODEL_FALLBACK"),
	}

	cfg.Transcription = TranscriptionConfig{
		Primary:            strings.ToLower(strings.TrimSpace(v.GetString("TRANSCRIPTION_PRIMARY"))),
		Secondary:          strings.ToLower(strings.TrimSpace(v.GetString("TRANSCRIPTION_SECONDARY"))),
		Language:           v.GetString("TRANSCRIPTION_LANGUAGE"),
		GCPCredentialsFile: v.GetString("GCP_CREDENTIALS_FILE"),
	}

	maxUpload := v.GetInt64("MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	historyLimit := v.GetInt("CHAT_HISTORY_LIMIT")
	if historyLimit <= 0 {
		historyLimit = 11
	}
	cfg.Chat = ChatConfig{
		HistoryLimit:   historyLimit,
		SessionIdleTTL: parseDuration(v.GetString("SESSION_IDLE_TTL"), 30*time.Minute),
		MaxUploadBytes: maxUpload,
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	ratio := v.GetFloat64("OTEL_SAMPLER_RATIO")
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	cfg.Tracing = TracingConfig{
		Enabled:      v.GetBool("OTEL_ENABLED"),
		Endpoint:     v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SampleRatio:  ratio,
		ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		OTLPInsecure: v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_API_URL", "http://127.0.0.1:8000/api")
	v.SetDefault("BACKEND_TIMEOUT", "10s")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LLM_PROVIDER", ProviderGemini)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("LLM_TIMEOUT", "30s")
	v.SetDefault("LLM_TEMPERATURE", 0.7)
	v.SetDefault("LLM_MAX_OUTPUT_TOKENS", 1024)
	v.SetDefault("LLM_STARTUP_PROBE", false)
	v.SetDefault("INTENT_MODEL_FALLBACK", false)

	v.SetDefault("TRANSCRIPTION_PRIMARY", ProviderNone)
	v.SetDefault("TRANSCRIPTION_SECONDARY", ProviderNone)
	v.SetDefault("TRANSCRIPTION_LANGUAGE", "es-ES")
	v.SetDefault("GCP_CREDENTIALS_FILE", "")

	v.SetDefault("CHAT_HISTORY_LIMIT", 11)
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("MAX_UPLOAD_BYTES", 10*1024*1024)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 0.1)
	v.SetDefault("OTEL_SERVICE_NAME", "edubot-api")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
