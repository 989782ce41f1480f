package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys mirror the environment variable names (upper-cased by viper).
const (
	KeyStudentSecret       = "student_secret"
	KeyGitHubToken         = "github_token"
	KeyGitHubUsername      = "github_username"
	KeyGitHubAPIURL        = "github_api_url"
	KeyGitHubBranch        = "github_default_branch"
	KeyGitHubPagesDomain   = "github_pages_domain"
	KeyOpenAIAPIKey        = "openai_api_key"
	KeyOpenAIBaseURL       = "openai_base_url"
	KeyOpenAIModel         = "openai_model"
	KeyOpenAITemperature   = "openai_temperature"
	KeyOpenAITimeout       = "openai_timeout_seconds"
	KeyAPIHost             = "api_host"
	KeyAPIPort             = "api_port"
	KeyWebhookBaseURL      = "webhook_base_url"
	KeyCORSOrigins         = "cors_allowed_origins"
	KeyRateLimitPerMinute  = "rate_limit_per_minute"
	KeyRateLimitBurst      = "rate_limit_burst"
	KeyTrustedProxies      = "trusted_proxies"
	KeyMaxBodyBytes        = "max_body_bytes"
	KeyGinReleaseMode      = "gin_release_mode"
	KeyDatabaseURL         = "database_url"
	KeyStorePath           = "store_path"
	KeyPagesWaitTime       = "github_pages_wait_time"
	KeyRevisePagesWaitTime = "revise_pages_wait_time"
	KeyPollInterval        = "pages_poll_interval_seconds"
	KeyPollTimeout         = "pages_poll_timeout_seconds"
	KeyMaxRetryAttempts    = "max_retry_attempts"
	KeyNotifyBackoff       = "notify_backoff_ms"
	KeyNotifyTimeout       = "notify_attempt_timeout_seconds"
	KeyNotifyWorkers       = "notify_workers"
	KeyLogLevel            = "log_level"
	KeyLogFormat           = "log_format"
	KeyMetricsEnabled      = "metrics_enabled"
	KeyTracingExporter     = "tracing_exporter"
	KeyOTLPEndpoint        = "otlp_endpoint"
	KeyZipkinURL           = "zipkin_url"
	KeyTracingSampleRate   = "tracing_sample_rate"
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// EnvFile is loaded into the process environment before reading; missing
	// files are ignored. Defaults to ".env".
	EnvFile string
	// ConfigFile is an explicit yaml/json/toml file. When empty, "tds.*" is
	// searched in the working directory and its absence is not an error.
	ConfigFile string
	// Viper lets callers (tests, cobra flag bindings) supply a prepared instance.
	Viper *viper.Viper
}

// SetDefaults registers every key with its default value. Keys must be known to
// viper for AutomaticEnv to resolve them during Unmarshal-free lookups.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStudentSecret, "")
	v.SetDefault(KeyGitHubToken, "")
	v.SetDefault(KeyGitHubUsername, "")
	v.SetDefault(KeyGitHubAPIURL, "")
	v.SetDefault(KeyGitHubBranch, "main")
	v.SetDefault(KeyGitHubPagesDomain, "github.io")
	v.SetDefault(KeyOpenAIAPIKey, "")
	v.SetDefault(KeyOpenAIBaseURL, "")
	v.SetDefault(KeyOpenAIModel, "gpt-4o-mini")
	v.SetDefault(KeyOpenAITemperature, 0.2)
	v.SetDefault(KeyOpenAITimeout, 120)
	v.SetDefault(KeyAPIHost, "0.0.0.0")
	v.SetDefault(KeyAPIPort, 8000)
	v.SetDefault(KeyWebhookBaseURL, "")
	v.SetDefault(KeyCORSOrigins, []string{"*"})
	v.SetDefault(KeyRateLimitPerMinute, 120)
	v.SetDefault(KeyRateLimitBurst, 20)
	v.SetDefault(KeyTrustedProxies, []string{})
	v.SetDefault(KeyMaxBodyBytes, 10<<20)
	v.SetDefault(KeyGinReleaseMode, true)
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyStorePath, "")
	v.SetDefault(KeyPagesWaitTime, 120)
	v.SetDefault(KeyRevisePagesWaitTime, 60)
	v.SetDefault(KeyPollInterval, 5)
	v.SetDefault(KeyPollTimeout, 10)
	v.SetDefault(KeyMaxRetryAttempts, 3)
	v.SetDefault(KeyNotifyBackoff, 500)
	v.SetDefault(KeyNotifyTimeout, 30)
	v.SetDefault(KeyNotifyWorkers, 16)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyTracingExporter, "none")
	v.SetDefault(KeyOTLPEndpoint, "localhost:4318")
	v.SetDefault(KeyZipkinURL, "http://localhost:9411/api/v2/spans")
	v.SetDefault(KeyTracingSampleRate, 1.0)
}

// Load resolves configuration from .env, an optional config file and the
// environment, in increasing precedence. It does not validate; call Validate.
func Load(opts LoadOptions) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("tds")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return FromViper(v), nil
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) Config {
	return Config{
		Auth: AuthConfig{
			StudentSecret: strings.TrimSpace(v.GetString(KeyStudentSecret)),
		},
		Server: ServerConfig{
			Host:            v.GetString(KeyAPIHost),
			Port:            v.GetInt(KeyAPIPort),
			WebhookBaseURL:  webhookBaseURL(v),
			AllowedOrigins:  splitList(v.GetStringSlice(KeyCORSOrigins)),
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitPerMin: v.GetInt(KeyRateLimitPerMinute),
			RateLimitBurst:  v.GetInt(KeyRateLimitBurst),
			TrustedProxies:  splitList(v.GetStringSlice(KeyTrustedProxies)),
			MaxBodyBytes:    v.GetInt64(KeyMaxBodyBytes),
			ServiceName:     "LLM Code Deployment",
			GinReleaseMode:  v.GetBool(KeyGinReleaseMode),
		},
		Store: StoreConfig{
			DatabaseURL:     strings.TrimSpace(v.GetString(KeyDatabaseURL)),
			PersistencePath: strings.TrimSpace(v.GetString(KeyStorePath)),
		},
		GitHub: GitHubConfig{
			Token:         strings.TrimSpace(v.GetString(KeyGitHubToken)),
			Username:      strings.TrimSpace(v.GetString(KeyGitHubUsername)),
			APIBaseURL:    strings.TrimSpace(v.GetString(KeyGitHubAPIURL)),
			DefaultBranch: v.GetString(KeyGitHubBranch),
			PagesDomain:   v.GetString(KeyGitHubPagesDomain),
		},
		LLM: LLMConfig{
			APIKey:      strings.TrimSpace(v.GetString(KeyOpenAIAPIKey)),
			BaseURL:     strings.TrimSpace(v.GetString(KeyOpenAIBaseURL)),
			Model:       v.GetString(KeyOpenAIModel),
			Temperature: float32(v.GetFloat64(KeyOpenAITemperature)),
			Timeout:     seconds(v.GetInt(KeyOpenAITimeout)),
		},
		Lifecycle: LifecycleConfig{
			PublishWaitTimeout: seconds(v.GetInt(KeyPagesWaitTime)),
			ReviseWaitTimeout:  seconds(v.GetInt(KeyRevisePagesWaitTime)),
			PollInterval:       seconds(v.GetInt(KeyPollInterval)),
			PollTimeout:        seconds(v.GetInt(KeyPollTimeout)),
		},
		Notification: NotificationConfig{
			MaxAttempts:    v.GetInt(KeyMaxRetryAttempts),
			Backoff:        time.Duration(v.GetInt(KeyNotifyBackoff)) * time.Millisecond,
			AttemptTimeout: seconds(v.GetInt(KeyNotifyTimeout)),
			Workers:        v.GetInt(KeyNotifyWorkers),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool(KeyMetricsEnabled),
		},
		Tracing: TracingConfig{
			Exporter:     strings.ToLower(strings.TrimSpace(v.GetString(KeyTracingExporter))),
			OTLPEndpoint: v.GetString(KeyOTLPEndpoint),
			ZipkinURL:    v.GetString(KeyZipkinURL),
			SampleRate:   v.GetFloat64(KeyTracingSampleRate),
		},
	}
}

func webhookBaseURL(v *viper.Viper) string {
	if base := strings.TrimSpace(v.GetString(KeyWebhookBaseURL)); base != "" {
		return strings.TrimRight(base, "/")
	}
	return fmt.Sprintf("http://localhost:%d", v.GetInt(KeyAPIPort))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// splitList flattens comma-separated entries so both yaml lists and
// CORS_ALLOWED_ORIGINS="a,b" work.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
