package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	sharederrors "github.com/Amit95688/TDS/internal/shared/errors"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

// Config configures the OpenAI-compatible generator.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	// Timeout bounds a single completion attempt.
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

// OpenAIGenerator implements ports.Generator on the chat completions API.
type OpenAIGenerator struct {
	client       *openai.Client
	model        string
	temperature  float32
	timeout      time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	logger       logging.Logger
}

var _ ports.Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator validates cfg and builds a client.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientCfg.BaseURL = base
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	g := &OpenAIGenerator{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		timeout:      cfg.Timeout,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		logger:       logging.NewComponentLogger("OpenAIGenerator"),
	}
	if g.model == "" {
		g.model = openai.GPT4oMini
	}
	if g.timeout <= 0 {
		g.timeout = 120 * time.Second
	}
	if g.maxAttempts < 1 {
		g.maxAttempts = 3
	}
	if g.retryBackoff <= 0 {
		g.retryBackoff = time.Second
	}
	return g, nil
}

// Model returns the configured model name.
func (g *OpenAIGenerator) Model() string { return g.model }

// Generate produces a fresh index.html for the brief.
func (g *OpenAIGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	return g.complete(ctx, "generate", req.TaskID, generateMessages(req))
}

// Revise rewrites an existing index.html according to the feedback.
func (g *OpenAIGenerator) Revise(ctx context.Context, req ports.RevisionRequest) (string, error) {
	return g.complete(ctx, "revise", req.TaskID, reviseMessages(req))
}

func (g *OpenAIGenerator) complete(ctx context.Context, op, taskID string, messages []openai.ChatCompletionMessage) (string, error) {
	logger := logging.FromContext(ctx, g.logger)
	request := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.retryBackoff
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.maxAttempts-1)), ctx)

	var (
		doc      Document
		attempts int
		started  = time.Now()
	)
	err := backoff.Retry(func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.client.CreateChatCompletion(attemptCtx, request)
		if err != nil {
			classified := classify(err)
			logger.Warn("[OpenAIGenerator] %s %s attempt %d failed: %v", op, taskID, attempts, err)
			if sharederrors.IsPermanent(classified) {
				return backoff.Permanent(classified)
			}
			return classified
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}
		doc, err = ExtractDocument(resp.Choices[0].Message.Content)
		if err != nil {
			// A reply without a usable document is not retried.
			return backoff.Permanent(err)
		}
		logger.Info("[OpenAIGenerator] %s %s: %q (%d bytes, %d tokens, attempt %d, %s)",
			op, taskID, doc.Title, len(doc.Source), resp.Usage.TotalTokens, attempts, time.Since(started).Round(time.Millisecond))
		return nil
	}, retry)
	if err != nil {
		return "", fmt.Errorf("%s after %d attempt(s): %w", op, attempts, err)
	}
	return doc.Source, nil
}

// classify maps client errors onto the shared transient/permanent taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		if classified := sharederrors.FromStatus("chat/completions", apiErr.HTTPStatusCode); classified != nil {
			return fmt.Errorf("%s: %w", apiErr.Message, classified)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		if classified := sharederrors.FromStatus("chat/completions", reqErr.HTTPStatusCode); classified != nil {
			return classified
		}
	}
	if errors.Is(err, context.Canceled) {
		return sharederrors.NewPermanentError(err, "generation cancelled")
	}
	return err
}
