package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amit95688/TDS/internal/shared/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg := config.FromViper(v)
	cfg.Auth.StudentSecret = "secret"
	cfg.GitHub.Token = "ghp_token"
	cfg.GitHub.Username = "octo"
	cfg.LLM.APIKey = "sk-test"
	cfg.Store.PersistencePath = filepath.Join(t.TempDir(), "tasks.json")
	cfg.Server.GinReleaseMode = false
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestSelectStoreKind(t *testing.T) {
	assert.Equal(t, StorePostgres, SelectStoreKind(config.StoreConfig{DatabaseURL: "postgres://db/tds", PersistencePath: "x.json"}))
	assert.Equal(t, StoreFile, SelectStoreKind(config.StoreConfig{PersistencePath: "x.json"}))
	assert.Equal(t, StoreMemory, SelectStoreKind(config.StoreConfig{}))
}

func TestBuildContainerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.StudentSecret = ""

	_, err := BuildContainer(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STUDENT_SECRET is required")
}

func TestBuildContainerServesProbes(t *testing.T) {
	cfg := testConfig(t)
	c, err := BuildContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })

	assert.Equal(t, StoreFile, c.StoreKind)
	assert.True(t, c.Degraded.IsEmpty())

	for _, path := range []string{"/health", "/live", "/ready"} {
		rec := httptest.NewRecorder()
		c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, cfg.Server.ServiceName, body["service"])

	rec = httptest.NewRecorder()
	c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tds_healthcheck_status")
}

func TestBuildContainerDegradesOnTracingFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tracing.Exporter = "zipkin"
	cfg.Tracing.ZipkinURL = "not-a-url"

	c, err := BuildContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })

	assert.Contains(t, c.Degraded.Map(), "tracing")
	assert.Nil(t, c.Tracer)
	assert.NotNil(t, c.Router)
}

func TestServeUntilDoneStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	c, err := BuildContainer(context.Background(), cfg)
	require.NoError(t, err)

	server := &http.Server{Addr: "127.0.0.1:0", Handler: c.Router}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, server, c, time.Second, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
