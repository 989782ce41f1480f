package app

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const maxTaskNameLength = 100

var taskNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateTaskName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError("task is required")
	}
	if len(name) > maxTaskNameLength {
		return ValidationError(fmt.Sprintf("task too long (max %d characters)", maxTaskNameLength))
	}
	if name == "." || name == ".." || !taskNamePattern.MatchString(name) {
		return ValidationError("task must be a URL-safe repository name")
	}
	return nil
}

func validateEvaluationURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ValidationError("evaluation_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError("evaluation_url must be an absolute http(s) URL")
	}
	return nil
}

// authenticate compares secrets in constant time.
func authenticate(configured, presented string) error {
	if configured == "" || subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return AuthError("Invalid secret")
	}
	return nil
}
