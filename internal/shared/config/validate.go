package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	ID      string
	Message string
	Hint    string
}

// ValidationReport summarizes config validation findings.
type ValidationReport struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// HasErrors reports whether the validation report contains blocking errors.
func (r ValidationReport) HasErrors() bool {
	return len(r.Errors) > 0
}

// Err folds blocking errors into a single error, or nil.
func (r ValidationReport) Err() error {
	if !r.HasErrors() {
		return nil
	}
	missing := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		missing = append(missing, issue.Message)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(missing, "; "))
}

// Validate checks required credentials and sanity bounds. It runs before any
// component is constructed.
func Validate(cfg Config) ValidationReport {
	var report ValidationReport
	addErr := func(id, msg, hint string) {
		report.Errors = append(report.Errors, ValidationIssue{ID: id, Message: msg, Hint: hint})
	}
	addWarn := func(id, msg, hint string) {
		report.Warnings = append(report.Warnings, ValidationIssue{ID: id, Message: msg, Hint: hint})
	}

	required := []struct {
		id    string
		env   string
		value string
	}{
		{"student-secret", "STUDENT_SECRET", cfg.Auth.StudentSecret},
		{"github-token", "GITHUB_TOKEN", cfg.GitHub.Token},
		{"github-username", "GITHUB_USERNAME", cfg.GitHub.Username},
		{"openai-api-key", "OPENAI_API_KEY", cfg.LLM.APIKey},
	}
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			addErr(item.id, item.env+" is required", "Set it in .env or the process environment.")
		}
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		addErr("api-port", fmt.Sprintf("API_PORT %d is out of range", cfg.Server.Port), "Use a port between 1 and 65535.")
	}
	if cfg.Notification.MaxAttempts < 1 {
		addErr("max-retry-attempts", "MAX_RETRY_ATTEMPTS must be at least 1", "")
	}
	if cfg.Lifecycle.PollInterval <= 0 {
		addErr("poll-interval", "PAGES_POLL_INTERVAL_SECONDS must be positive", "")
	}
	if cfg.Lifecycle.PublishWaitTimeout <= 0 {
		addErr("pages-wait", "GITHUB_PAGES_WAIT_TIME must be positive", "")
	}
	if cfg.Lifecycle.ReviseWaitTimeout > cfg.Lifecycle.PublishWaitTimeout {
		addWarn("revise-wait", "REVISE_PAGES_WAIT_TIME exceeds GITHUB_PAGES_WAIT_TIME",
			"The revise wait is capped at the build ceiling.")
	}

	switch cfg.Tracing.Exporter {
	case "", "none", "otlp", "zipkin":
	default:
		addErr("tracing-exporter", fmt.Sprintf("unknown TRACING_EXPORTER %q", cfg.Tracing.Exporter), "Use none, otlp or zipkin.")
	}

	if dsn := cfg.Store.DatabaseURL; dsn != "" {
		if u, err := url.Parse(dsn); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			addErr("database-url", "DATABASE_URL must be a postgres:// URL", "Unset it to use the in-memory store.")
		}
	} else if cfg.Store.PersistencePath == "" {
		addWarn("store", "no DATABASE_URL or STORE_PATH configured", "Tasks will be lost on restart.")
	}

	return report
}
