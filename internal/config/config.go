package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	PPG         PPGConfig       `mapstructure:"ppg"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Session     SessionConfig   `mapstructure:"session"`
	LiveKit     LiveKitConfig   `mapstructure:"livekit"`
	Assistant   AssistantConfig `mapstructure:"assistant"`
	Twilio      TwilioConfig    `mapstructure:"twilio"`
	Ultravox    UltravoxConfig  `mapstructure:"ultravox"`
	Email       EmailConfig     `mapstructure:"email"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Stream      StreamConfig    `mapstructure:"stream"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Security    SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type ROIConfig struct {
	X      float64 `mapstructure:"x"`
	Y      float64 `mapstructure:"y"`
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

type PPGConfig struct {
	DefaultDuration     int       `mapstructure:"default_duration"`
	DefaultSamplingRate int       `mapstructure:"default_sampling_rate"`
	DefaultROI          ROIConfig `mapstructure:"default_roi"`
	MinDurationSeconds  int       `mapstructure:"min_duration_seconds"`
	MaxDurationSeconds  int       `mapstructure:"max_duration_seconds"`
	MaxSamplingRate     int       `mapstructure:"max_sampling_rate"`
	LowCutHz            float64   `mapstructure:"low_cut_hz"`
	HighCutHz           float64   `mapstructure:"high_cut_hz"`
	DetrendOrder        int       `mapstructure:"detrend_order"`
	ReferenceBPM        float64   `mapstructure:"reference_bpm"`
	ReferenceJitterBPM  float64   `mapstructure:"reference_jitter_bpm"`
	SimulatorSeed       uint64    `mapstructure:"simulator_seed"`
}

type DatabaseConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	DatabaseURL string `mapstructure:"database_url"`
	MaxConns    int32  `mapstructure:"max_conns"`

	InjuryReportRetention time.Duration `mapstructure:"injury_report_retention"`
	CleanupInterval       time.Duration `mapstructure:"cleanup_interval"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	Backend      string        `mapstructure:"backend"`
	TTL          time.Duration `mapstructure:"ttl"`
	HistoryLimit int           `mapstructure:"history_limit"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

type LiveKitConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret" json:"-" yaml:"-"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type AssistantConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key" json:"-" yaml:"-"`
	ChatModel          string        `mapstructure:"chat_model"`
	VisionModel        string        `mapstructure:"vision_model"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	TextPromptFile     string        `mapstructure:"text_prompt_file"`
	VisionPromptFile   string        `mapstructure:"vision_prompt_file"`
	VoicePromptFile    string        `mapstructure:"voice_prompt_file"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	HospitalPhone      string        `mapstructure:"hospital_phone"`
}

type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token" json:"-" yaml:"-"`
}

type UltravoxConfig struct {
	APIURL      string  `mapstructure:"api_url"`
	APIKey      string  `mapstructure:"api_key" json:"-" yaml:"-"`
	Model       string  `mapstructure:"model"`
	Voice       string  `mapstructure:"voice"`
	Temperature float64 `mapstructure:"temperature"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Sender   string `mapstructure:"sender"`
	Password string `mapstructure:"password" json:"-" yaml:"-"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type StreamConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	OTLPLogs     bool    `mapstructure:"otlp_logs"`
}

type SecurityConfig struct {
	AdminAPIKey string `mapstructure:"admin_api_key" json:"-" yaml:"-"`
}

// Flags registers the command-line overrides understood by LoadWithFlags.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tanya", pflag.ContinueOnError)
	fs.String("config", "", "path to a config file (yaml)")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("session-backend", "", "conversation store: memory or redis")
	return fs
}

// Load reads configuration from defaults, ./configs/config.yaml and the environment.
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with parsed command-line overrides applied last.
func LoadWithFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"livekit.api_key":         "LIVEKIT_API_KEY",
		"livekit.api_secret":      "LIVEKIT_API_SECRET",
		"livekit.url":             "LIVEKIT_URL",
		"assistant.api_key":       "GROQ_API_KEY",
		"twilio.account_sid":      "TWILIO_ACCOUNT_SID",
		"twilio.auth_token":       "TWILIO_AUTH_TOKEN",
		"ultravox.api_key":        "ULTRAVOX_API_KEY",
		"email.sender":            "EMAIL_SENDER",
		"email.password":          "EMAIL_PASSWORD",
		"telegram.bot_token":      "TELEGRAM_BOT_TOKEN",
		"security.admin_api_key":  "ADMIN_API_KEY",
		"database.database_url":   "DATABASE_URL",
		"stream.nats_url":         "NATS_URL",
		"telemetry.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
		}
		for key, flag := range map[string]string{
			"server.port":     "port",
			"log_level":       "log-level",
			"session.backend": "session-backend",
		} {
			if f := fs.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind --%s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, defaults and environment still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)
	config.Session.Backend = strings.ToLower(config.Session.Backend)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	p := c.PPG
	if p.MinDurationSeconds <= 0 {
		return errors.New("ppg.min_duration_seconds must be positive")
	}
	if p.DefaultDuration < p.MinDurationSeconds {
		return fmt.Errorf("ppg.default_duration (%d) must be at least ppg.min_duration_seconds (%d)", p.DefaultDuration, p.MinDurationSeconds)
	}
	if p.LowCutHz <= 0 || p.HighCutHz <= p.LowCutHz {
		return fmt.Errorf("ppg band %.2f-%.2f Hz is invalid", p.LowCutHz, p.HighCutHz)
	}
	if float64(p.DefaultSamplingRate) <= 2*p.HighCutHz {
		return fmt.Errorf("ppg.default_sampling_rate must exceed %.1f Hz", 2*p.HighCutHz)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend)
	}
	if c.Session.HistoryLimit <= 0 {
		return errors.New("session.history_limit must be positive")
	}
	if c.Environment != "development" && c.Environment != "test" && c.Security.AdminAPIKey == "" {
		return errors.New("ADMIN_API_KEY environment variable is required in non-development environments")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("ppg.default_duration", 20)
	v.SetDefault("ppg.default_sampling_rate", 30)
	v.SetDefault("ppg.default_roi.x", 0.425)
	v.SetDefault("ppg.default_roi.y", 0.425)
	v.SetDefault("ppg.default_roi.width", 0.15)
	v.SetDefault("ppg.default_roi.height", 0.15)
	v.SetDefault("ppg.min_duration_seconds", 15)
	v.SetDefault("ppg.max_duration_seconds", 300)
	v.SetDefault("ppg.max_sampling_rate", 1000)
	v.SetDefault("ppg.low_cut_hz", 0.5)
	v.SetDefault("ppg.high_cut_hz", 2.5)
	v.SetDefault("ppg.detrend_order", 1)
	v.SetDefault("ppg.reference_bpm", 70.0)
	v.SetDefault("ppg.reference_jitter_bpm", 5.0)
	v.SetDefault("ppg.simulator_seed", 0)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "tanya")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.injury_report_retention", "2160h")
	v.SetDefault("database.cleanup_interval", "1h")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.history_limit", 5)
	v.SetDefault("session.key_prefix", "conversation:")

	v.SetDefault("livekit.url", "")
	v.SetDefault("livekit.api_key", "")
	v.SetDefault("livekit.api_secret", "")
	v.SetDefault("livekit.token_ttl", "6h")

	v.SetDefault("assistant.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.chat_model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("assistant.vision_model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("assistant.transcription_model", "whisper-large-v3-turbo")
	v.SetDefault("assistant.text_prompt_file", "")
	v.SetDefault("assistant.vision_prompt_file", "")
	v.SetDefault("assistant.voice_prompt_file", "")
	v.SetDefault("assistant.request_timeout", "30s")
	v.SetDefault("assistant.hospital_phone", "+151-522-5303")

	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")

	v.SetDefault("ultravox.api_url", "https://api.ultravox.ai/api/calls")
	v.SetDefault("ultravox.api_key", "")
	v.SetDefault("ultravox.model", "fixie-ai/ultravox")
	v.SetDefault("ultravox.voice", "Riya-Rao-English-Indian")
	v.SetDefault("ultravox.temperature", 0.3)

	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 465)
	v.SetDefault("email.sender", "")
	v.SetDefault("email.password", "")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("stream.nats_url", "")
	v.SetDefault("stream.subject", "ppg.results")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.otlp_logs", false)

	v.SetDefault("security.admin_api_key", "")
}
