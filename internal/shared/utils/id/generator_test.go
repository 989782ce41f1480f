package id

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewLogIDHasPrefix(t *testing.T) {
	logID := NewLogID()
	if !strings.HasPrefix(logID, "log-") {
		t.Fatalf("expected log- prefix, got %q", logID)
	}
	if logID == NewLogID() {
		t.Fatal("expected unique log ids")
	}
}

func TestNewNonceIsUUID(t *testing.T) {
	if _, err := uuid.Parse(NewNonce()); err != nil {
		t.Fatalf("expected uuid nonce: %v", err)
	}
}

func TestEnsureLogIDKeepsExisting(t *testing.T) {
	ctx := WithLogID(context.Background(), "log-existing")
	ctx, logID := EnsureLogID(ctx, func() string { return "log-new" })
	if logID != "log-existing" {
		t.Fatalf("expected existing log id, got %q", logID)
	}
	if LogIDFromContext(ctx) != "log-existing" {
		t.Fatalf("context lost log id")
	}
}

func TestEnsureLogIDGenerates(t *testing.T) {
	ctx, logID := EnsureLogID(context.Background(), func() string { return "log-new" })
	if logID != "log-new" || LogIDFromContext(ctx) != "log-new" {
		t.Fatalf("expected generated log id, got %q", logID)
	}
}

func TestWithLogIDIgnoresBlank(t *testing.T) {
	ctx := WithLogID(context.Background(), "  ")
	if LogIDFromContext(ctx) != "" {
		t.Fatal("blank log id should not be stored")
	}
}
