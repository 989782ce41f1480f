package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Amit95688/TDS/internal/shared/logging"
)

// ProxyModeEnv selects the proxy policy: auto (default), strict or direct.
const ProxyModeEnv = "TDS_PROXY_MODE"

const proxyDialTimeout = 300 * time.Millisecond

type proxyMode uint8

const (
	proxyModeAuto proxyMode = iota
	proxyModeStrict
	proxyModeDirect
)

// deadProxies caches loopback proxy reachability; true means skip it.
var deadProxies sync.Map

func parseProxyMode(raw string) proxyMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return proxyModeStrict
	case "direct", "none", "off":
		return proxyModeDirect
	default:
		return proxyModeAuto
	}
}

func proxyFunc(logger logging.Logger) func(*http.Request) (*url.URL, error) {
	log := logging.OrNop(logger)
	mode := parseProxyMode(os.Getenv(ProxyModeEnv))

	return func(req *http.Request) (*url.URL, error) {
		switch mode {
		case proxyModeDirect:
			return nil, nil
		case proxyModeStrict:
			return http.ProxyFromEnvironment(req)
		}

		if req != nil && req.URL != nil && isLoopbackHost(req.URL.Hostname()) {
			return nil, nil
		}
		proxyURL, err := http.ProxyFromEnvironment(req)
		if err != nil || proxyURL == nil || !isLoopbackHost(proxyURL.Hostname()) {
			return proxyURL, err
		}

		key := proxyURL.String()
		if dead, ok := deadProxies.Load(key); ok {
			if dead.(bool) {
				return nil, nil
			}
			return proxyURL, nil
		}

		ctx := context.Background()
		if req != nil {
			ctx = req.Context()
		}
		reachable := dialable(ctx, proxyAddr(proxyURL))
		deadProxies.Store(key, !reachable)
		if reachable {
			return proxyURL, nil
		}
		log.Warn("Local proxy %s is unreachable; sending outbound requests directly (set %s=strict to disable).", proxyURL.Redacted(), ProxyModeEnv)
		return nil, nil
	}
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

func proxyAddr(proxyURL *url.URL) string {
	if port := proxyURL.Port(); port != "" {
		return net.JoinHostPort(proxyURL.Hostname(), port)
	}
	if strings.EqualFold(proxyURL.Scheme, "https") {
		return net.JoinHostPort(proxyURL.Hostname(), "443")
	}
	return net.JoinHostPort(proxyURL.Hostname(), "80")
}

func dialable(ctx context.Context, addr string) bool {
	dialer := net.Dialer{Timeout: proxyDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
