package http

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/time/rate"

	"github.com/Amit95688/TDS/internal/shared/logging"
	id "github.com/Amit95688/TDS/internal/shared/utils/id"
)

const logIDHeader = "X-Log-Id"

func resolveLogID(r *http.Request) string {
	for _, header := range []string{logIDHeader, "X-Request-Id", "X-Correlation-Id"} {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" {
			return value
		}
	}
	return ""
}

// logIDMiddleware attaches a log id to the request context and echoes it in
// the X-Log-Id response header.
func logIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logID := resolveLogID(c.Request)
		if logID == "" {
			logID = id.NewLogID()
		}
		c.Request = c.Request.WithContext(id.WithLogID(ctx, logID))
		c.Header(logIDHeader, logID)
		c.Next()
	}
}

// accessLogMiddleware logs one line per request after it completes.
func accessLogMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if path == "/live" || path == "/ready" || path == "/metrics" {
			return
		}
		reqLogger := logging.FromContext(c.Request.Context(), logger)
		reqLogger.Info("%s %s %d %s from %s", c.Request.Method, path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond), c.ClientIP())
	}
}

// recoveryMiddleware turns handler panics into the standard error body.
func recoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context(), logger).Error("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		writeJSONError(c, http.StatusInternalServerError, internalErrorDetail)
	})
}

// bodyLimitMiddleware caps request bodies; oversized reads fail during binding.
func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

const (
	defaultRateLimitEntryTTL        = 15 * time.Minute
	defaultRateLimitCleanupInterval = 5 * time.Minute
)

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// ipRateLimiter keeps one token bucket per client IP. Entries idle longer
// than entryTTL are swept at most once per cleanupInterval.
type ipRateLimiter struct {
	entries         cmap.ConcurrentMap[string, *rateLimitEntry]
	limit           rate.Limit
	burst           int
	entryTTL        time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	mu          sync.Mutex
	lastCleanup time.Time
}

func newIPRateLimiter(perMinute, burst int) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		entries:         cmap.New[*rateLimitEntry](),
		limit:           rate.Every(time.Minute / time.Duration(perMinute)),
		burst:           burst,
		entryTTL:        defaultRateLimitEntryTTL,
		cleanupInterval: defaultRateLimitCleanupInterval,
		now:             time.Now,
		lastCleanup:     time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	now := l.now()
	l.maybeCleanup(now)

	entry := l.entries.Upsert(ip, nil, func(exists bool, current, _ *rateLimitEntry) *rateLimitEntry {
		if exists {
			return current
		}
		created := &rateLimitEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		created.lastSeen.Store(now.UnixNano())
		return created
	})
	entry.lastSeen.Store(now.UnixNano())
	return entry.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) maybeCleanup(now time.Time) {
	l.mu.Lock()
	if now.Sub(l.lastCleanup) < l.cleanupInterval {
		l.mu.Unlock()
		return
	}
	l.lastCleanup = now
	l.mu.Unlock()

	cutoff := now.Add(-l.entryTTL).UnixNano()
	for item := range l.entries.IterBuffered() {
		l.entries.RemoveCb(item.Key, func(_ string, entry *rateLimitEntry, exists bool) bool {
			return exists && entry.lastSeen.Load() < cutoff
		})
	}
}

func (l *ipRateLimiter) size() int {
	return l.entries.Count()
}

// rateLimitMiddleware rejects clients that exceed perMinute with 429. A
// non-positive perMinute disables limiting. Clients are keyed by
// gin's ClientIP, which only honours forwarding headers from trusted proxies.
func rateLimitMiddleware(perMinute, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return newIPRateLimiter(perMinute, burst).middleware()
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			writeJSONError(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

// bindJSON decodes the body and writes a 400/413 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeJSONError(c, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
