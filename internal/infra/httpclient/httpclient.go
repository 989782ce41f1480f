package httpclient

import (
	"net/http"
	"time"

	"github.com/Amit95688/TDS/internal/shared/logging"
)

// Purpose names the outbound traffic a client carries. It picks the default
// timeout and is appended to the User-Agent.
type Purpose string

const (
	PurposeEvaluation  Purpose = "evaluation"
	PurposePages       Purpose = "pages"
	PurposeHosting     Purpose = "hosting"
	PurposeAttachments Purpose = "attachments"
	PurposeLLM         Purpose = "llm"
)

const defaultProduct = "tds-server"

var purposeTimeouts = map[Purpose]time.Duration{
	PurposeEvaluation:  30 * time.Second,
	PurposePages:       10 * time.Second,
	PurposeHosting:     60 * time.Second,
	PurposeAttachments: 30 * time.Second,
	PurposeLLM:         120 * time.Second,
}

type options struct {
	timeout time.Duration
	version string
	logger  logging.Logger
}

// Option customizes a client built by New.
type Option func(*options)

// WithTimeout overrides the purpose's default timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithVersion stamps the build version into the User-Agent.
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New returns an http.Client for one kind of outbound traffic. Requests carry
// a "tds-server/<version> (<purpose>)" User-Agent unless the caller set one.
//
// Proxies come from HTTP(S)_PROXY/NO_PROXY, except that a loopback proxy that
// does not accept connections is skipped.
func New(purpose Purpose, opts ...Option) *http.Client {
	o := options{timeout: purposeTimeouts[purpose], version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: o.timeout,
		Transport: &userAgentTransport{
			base:      Transport(o.logger),
			userAgent: UserAgent(o.version, purpose),
		},
	}
}

// UserAgent formats the outbound User-Agent header.
func UserAgent(version string, purpose Purpose) string {
	if version == "" {
		version = "dev"
	}
	ua := defaultProduct + "/" + version
	if purpose != "" {
		ua += " (" + string(purpose) + ")"
	}
	return ua
}

// Transport clones the default transport with the outbound proxy policy.
func Transport(logger logging.Logger) *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: proxyFunc(logger)}
	}
	transport := base.Clone()
	transport.Proxy = proxyFunc(logger)
	transport.MaxIdleConnsPerHost = 16
	return transport
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
