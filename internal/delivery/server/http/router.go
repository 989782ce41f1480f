package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Amit95688/TDS/internal/shared/logging"
)

// NewRouter creates the gin engine with every endpoint registered.
func NewRouter(deps RouterDeps, cfg RouterConfig) http.Handler {
	logger := logging.NewComponentLogger("Router")
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	// Forwarding headers are ignored unless the peer is a configured proxy.
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Warn("Invalid trusted proxies %v, trusting none: %v", cfg.TrustedProxies, err)
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(
		recoveryMiddleware(logger),
		logIDMiddleware(),
		cors.New(corsConfig(cfg)),
		newHTTPMetrics(deps.Registry).middleware(),
		accessLogMiddleware(logger),
	)

	api := NewAPIHandler(deps.Build, deps.Revise, deps.Receiver, deps.Queries, cfg.ServiceName)

	engine.GET("/", api.HandleRoot)
	engine.GET("/health", api.HandleHealth)
	if deps.Health != nil {
		engine.GET("/live", gin.WrapF(deps.Health.LiveEndpoint))
		engine.GET("/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	group := engine.Group("/api",
		rateLimitMiddleware(cfg.RateLimitPerMin, cfg.RateLimitBurst),
		bodyLimitMiddleware(cfg.MaxBodyBytes),
	)
	group.POST("/build", api.HandleBuild)
	group.POST("/revise", api.HandleRevise)
	group.POST("/evaluate/webhook", api.HandleWebhook)
	group.GET("/results/:task_id", api.HandleResults)
	group.GET("/tasks/:email", api.HandleTasks)
	group.GET("/history/:task_id", api.HandleHistory)

	engine.NoRoute(func(c *gin.Context) {
		writeJSONError(c, http.StatusNotFound, "Not found")
	})

	logger.Info("Router ready (origins=%v, rate=%d/min)", cfg.AllowedOrigins, cfg.RateLimitPerMin)
	return engine
}

func corsConfig(cfg RouterConfig) cors.Config {
	conf := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", logIDHeader},
		ExposeHeaders: []string{logIDHeader},
		MaxAge:        cfg.CORSPreflightTTL,
	}
	if conf.MaxAge <= 0 {
		conf.MaxAge = 12 * time.Hour
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		conf.AllowAllOrigins = true
		return conf
	}
	for _, origin := range origins {
		if origin == "*" {
			conf.AllowAllOrigins = true
			return conf
		}
	}
	conf.AllowOrigins = origins
	conf.AllowCredentials = true
	return conf
}
