package config

import "time"

// Config is the resolved process configuration. It is built once at startup
// and threaded through component constructors.
type Config struct {
	Auth         AuthConfig
	Server       ServerConfig
	Store        StoreConfig
	GitHub       GitHubConfig
	LLM          LLMConfig
	Lifecycle    LifecycleConfig
	Notification NotificationConfig
	Log          LogConfig
	Metrics      MetricsConfig
	Tracing      TracingConfig
}

// AuthConfig holds the single shared secret clients must present.
type AuthConfig struct {
	StudentSecret string
}

// ServerConfig captures HTTP listener settings.
type ServerConfig struct {
	Host            string
	Port            int
	WebhookBaseURL  string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitPerMin int
	RateLimitBurst  int
	TrustedProxies  []string
	MaxBodyBytes    int64
	ServiceName     string
	GinReleaseMode  bool
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return joinHostPort(c.Host, c.Port)
}

// StoreConfig selects the task store backend. A postgres DatabaseURL wins over
// a persistence file; with neither the store is purely in memory.
type StoreConfig struct {
	DatabaseURL     string
	PersistencePath string
}

// GitHubConfig identifies the hosting account.
type GitHubConfig struct {
	Token         string
	Username      string
	APIBaseURL    string
	DefaultBranch string
	PagesDomain   string
}

// LLMConfig configures the code generation collaborator.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// LifecycleConfig carries the orchestrator tuning knobs.
type LifecycleConfig struct {
	PublishWaitTimeout time.Duration
	ReviseWaitTimeout  time.Duration
	PollInterval       time.Duration
	PollTimeout        time.Duration
}

// NotificationConfig carries evaluation-dispatch tuning knobs.
type NotificationConfig struct {
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
	Workers        int
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Exporter     string // none, otlp, zipkin
	OTLPEndpoint string
	ZipkinURL    string
	SampleRate   float64
}
