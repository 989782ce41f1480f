package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	serverApp "github.com/Amit95688/TDS/internal/delivery/server/app"
	serverHTTP "github.com/Amit95688/TDS/internal/delivery/server/http"
	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/infra/attachments"
	"github.com/Amit95688/TDS/internal/infra/hosting"
	"github.com/Amit95688/TDS/internal/infra/httpclient"
	"github.com/Amit95688/TDS/internal/infra/llm"
	"github.com/Amit95688/TDS/internal/infra/observability"
	"github.com/Amit95688/TDS/internal/shared/config"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

const notifierDrainTimeout = 10 * time.Second

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Container holds every long-lived component of the server.
type Container struct {
	Config    config.Config
	Store     ports.TaskStore
	StoreKind StoreKind
	Tracer    *observability.TracerProvider
	Notifier  *serverApp.EvaluationNotifier
	Build     *serverApp.BuildService
	Revise    *serverApp.ReviseService
	Receiver  *serverApp.ResultReceiver
	Queries   *serverApp.QueryService
	Health    healthcheck.Handler
	Registry  *prometheus.Registry
	Degraded  *DegradedComponents
	Router    http.Handler

	// overrides let tests swap external collaborators.
	generator ports.Generator
	publisher ports.Publisher
}

// ContainerOption customizes container construction.
type ContainerOption func(*Container)

// WithGenerator replaces the OpenAI generator.
func WithGenerator(g ports.Generator) ContainerOption {
	return func(c *Container) { c.generator = g }
}

// WithPublisher replaces the GitHub publisher.
func WithPublisher(p ports.Publisher) ContainerOption {
	return func(c *Container) { c.publisher = p }
}

// BuildContainer validates cfg and wires the application. Validation runs
// before any component is constructed.
func BuildContainer(ctx context.Context, cfg config.Config, opts ...ContainerOption) (*Container, error) {
	if err := config.Validate(cfg).Err(); err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger("Bootstrap")

	c := &Container{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Degraded: NewDegradedComponents(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := serverApp.MustNewMetrics(c.Registry)
	outbound := func(purpose httpclient.Purpose, opts ...httpclient.Option) *http.Client {
		return httpclient.New(purpose, append([]httpclient.Option{
			httpclient.WithVersion(Version),
			httpclient.WithLogger(logger),
		}, opts...)...)
	}

	stages := []Stage{
		{
			Name: "tracing", Required: false,
			Init: func(ctx context.Context) error {
				tracer, err := observability.NewTracerProvider(ctx, cfg.Tracing, cfg.Server.ServiceName, Version)
				if err != nil {
					return err
				}
				c.Tracer = tracer
				return nil
			},
		},
		{
			Name: "store", Required: true,
			Init: func(ctx context.Context) error {
				store, kind, err := OpenStore(ctx, cfg.Store, logger)
				if err != nil {
					return err
				}
				c.Store, c.StoreKind = store, kind
				return nil
			},
		},
		{
			Name: "generator", Required: true,
			Init: func(context.Context) error {
				if c.generator != nil {
					return nil
				}
				generator, err := llm.NewOpenAIGenerator(llm.Config{
					APIKey:      cfg.LLM.APIKey,
					BaseURL:     cfg.LLM.BaseURL,
					Model:       cfg.LLM.Model,
					Temperature: cfg.LLM.Temperature,
					Timeout:     cfg.LLM.Timeout,
					HTTPClient:  outbound(httpclient.PurposeLLM, httpclient.WithTimeout(cfg.LLM.Timeout+5*time.Second)),
				})
				if err != nil {
					return err
				}
				c.generator = generator
				return nil
			},
		},
		{
			Name: "publisher", Required: true,
			Init: func(context.Context) error {
				if c.publisher != nil {
					return nil
				}
				publisher, err := hosting.NewPublisher(hosting.Config{
					Token:       cfg.GitHub.Token,
					Username:    cfg.GitHub.Username,
					APIBaseURL:  cfg.GitHub.APIBaseURL,
					Branch:      cfg.GitHub.DefaultBranch,
					PagesDomain: cfg.GitHub.PagesDomain,
					HTTPClient:  outbound(httpclient.PurposeHosting),
				})
				if err != nil {
					return err
				}
				c.publisher = publisher
				return nil
			},
		},
		{
			Name: "notifier", Required: true,
			Init: func(context.Context) error {
				notifier, err := serverApp.NewEvaluationNotifier(
					serverApp.WithMaxAttempts(cfg.Notification.MaxAttempts),
					serverApp.WithRetryBackoff(cfg.Notification.Backoff),
					serverApp.WithAttemptTimeout(cfg.Notification.AttemptTimeout),
					serverApp.WithNotifierWorkers(cfg.Notification.Workers),
					serverApp.WithNotifierHTTPClient(outbound(httpclient.PurposeEvaluation)),
					serverApp.WithNotifierMetrics(metrics),
				)
				if err != nil {
					return err
				}
				c.Notifier = notifier
				return nil
			},
		},
		{
			Name: "services", Required: true,
			Init: func(context.Context) error {
				return c.wireServices(metrics, outbound)
			},
		},
	}

	if err := RunStages(ctx, stages, c.Degraded, logger); err != nil {
		c.Close(context.Background())
		return nil, err
	}
	if !c.Degraded.IsEmpty() {
		logger.Warn("[Bootstrap] Starting in degraded mode: %v", c.Degraded.Map())
	}
	return c, nil
}

func (c *Container) wireServices(metrics *serverApp.Metrics, outbound func(httpclient.Purpose, ...httpclient.Option) *http.Client) error {
	cfg := c.Config
	deps := serverApp.LifecycleDeps{
		Secret:    cfg.Auth.StudentSecret,
		Store:     c.Store,
		Generator: c.generator,
		Publisher: c.publisher,
		Waiter: serverApp.NewPublishWaiter(
			serverApp.WithPollInterval(cfg.Lifecycle.PollInterval),
			serverApp.WithPollTimeout(cfg.Lifecycle.PollTimeout),
			serverApp.WithWaiterHTTPClient(outbound(httpclient.PurposePages)),
			serverApp.WithWaiterMetrics(metrics),
		),
		Notifier:    c.Notifier,
		Attachments: attachments.NewProcessor(attachments.WithHTTPClient(outbound(httpclient.PurposeAttachments))),
		Leases:      serverApp.NewLeaseTable(),
		Metrics:     metrics,
	}

	var err error
	if c.Build, err = serverApp.NewBuildService(deps,
		serverApp.WithBuildWaitTimeout(cfg.Lifecycle.PublishWaitTimeout)); err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	if c.Revise, err = serverApp.NewReviseService(deps,
		serverApp.WithReviseWaitTimeout(cfg.Lifecycle.ReviseWaitTimeout),
		serverApp.WithReviseWaitCeiling(cfg.Lifecycle.PublishWaitTimeout)); err != nil {
		return fmt.Errorf("revise service: %w", err)
	}
	if c.Receiver, err = serverApp.NewResultReceiver(c.Store); err != nil {
		return fmt.Errorf("result receiver: %w", err)
	}
	c.Queries = serverApp.NewQueryService(c.Store)

	c.Health = healthcheck.NewMetricsHandler(c.Registry, "tds")
	c.Health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))
	c.Health.AddReadinessCheck("store", healthcheck.Timeout(func() error {
		return c.Store.Ping(context.Background())
	}, 2*time.Second))

	var metricsHandler http.Handler
	var registry prometheus.Registerer
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry})
		registry = c.Registry
	}
	c.Router = serverHTTP.NewRouter(
		serverHTTP.RouterDeps{
			Build:    c.Build,
			Revise:   c.Revise,
			Receiver: c.Receiver,
			Queries:  c.Queries,
			Health:   c.Health,
			Metrics:  metricsHandler,
			Registry: registry,
		},
		serverHTTP.RouterConfig{
			ServiceName:     cfg.Server.ServiceName,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			RateLimitPerMin: cfg.Server.RateLimitPerMin,
			RateLimitBurst:  cfg.Server.RateLimitBurst,
			TrustedProxies:  cfg.Server.TrustedProxies,
			MaxBodyBytes:    cfg.Server.MaxBodyBytes,
			ReleaseMode:     cfg.Server.GinReleaseMode,
		},
	)
	return nil
}

// Close drains in-flight notifications, flushes traces and closes the store.
func (c *Container) Close(ctx context.Context) {
	logger := logging.NewComponentLogger("Bootstrap")
	if c.Notifier != nil {
		if err := c.Notifier.Close(notifierDrainTimeout); err != nil {
			logger.Warn("[Bootstrap] Notifier drain: %v", err)
		}
	}
	if c.Tracer != nil {
		if err := c.Tracer.Shutdown(ctx); err != nil {
			logger.Warn("[Bootstrap] Tracer shutdown: %v", err)
		}
	}
	if c.Store != nil {
		c.Store.Close()
	}
}
