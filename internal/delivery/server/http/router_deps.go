package http

import (
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Amit95688/TDS/internal/delivery/server/app"
)

// RouterDeps holds all service dependencies needed to construct the HTTP router.
type RouterDeps struct {
	Build    *app.BuildService
	Revise   *app.ReviseService
	Receiver *app.ResultReceiver
	Queries  *app.QueryService
	Health   healthcheck.Handler
	// Metrics serves /metrics when set.
	Metrics  http.Handler
	Registry prometheus.Registerer
}

// RouterConfig holds configuration values for the HTTP router.
type RouterConfig struct {
	ServiceName      string
	AllowedOrigins   []string
	RateLimitPerMin  int
	RateLimitBurst   int
	// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honoured.
	// Empty means the peer address is always the client.
	TrustedProxies   []string
	MaxBodyBytes     int64
	ReleaseMode      bool
	CORSPreflightTTL time.Duration
}
