package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
	"github.com/Amit95688/TDS/internal/infra/httpclient"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

// DefaultMaxBytes caps one decoded attachment.
const DefaultMaxBytes = 5 << 20

var (
	// ErrEmptyPayload is returned for attachments that decode to nothing.
	ErrEmptyPayload = errors.New("attachment payload is empty")
	// ErrTooLarge is returned when an attachment exceeds the size cap.
	ErrTooLarge = errors.New("attachment exceeds size limit")
	// ErrReservedName is returned for names that would overwrite generated files.
	ErrReservedName = errors.New("attachment name is reserved")
)

var (
	dataURIPattern = regexp.MustCompile(`(?is)^data:([^;,]*)((?:;[^,]*)?),(.*)$`)
	unsafeNameRune = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

var reservedNames = map[string]struct{}{
	"index.html": {},
	"readme.md":  {},
	"license":    {},
}

// Processor turns request attachments into repository files. Inline data:
// URIs are decoded; http(s) URLs are downloaded when remote fetching is on.
type Processor struct {
	client      *http.Client
	maxBytes    int64
	allowRemote bool
	urlOptions  httpclient.URLValidationOptions
	logger      logging.Logger
}

var _ ports.AttachmentProcessor = (*Processor)(nil)

// Option configures a Processor.
type Option func(*Processor)

// WithHTTPClient enables downloading http(s) attachments with client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Processor) {
		if client != nil {
			p.client = client
			p.allowRemote = true
		}
	}
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithURLValidation relaxes outbound URL checks (tests use loopback servers).
func WithURLValidation(opts httpclient.URLValidationOptions) Option {
	return func(p *Processor) { p.urlOptions = opts }
}

// NewProcessor builds a Processor. Without WithHTTPClient only data: URIs are accepted.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		maxBytes: DefaultMaxBytes,
		logger:   logging.NewComponentLogger("Attachments"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process decodes every attachment in order. Duplicate names get a numeric suffix.
func (p *Processor) Process(ctx context.Context, attachments []ports.Attachment) ([]ports.File, error) {
	logger := logging.FromContext(ctx, p.logger)
	files := make([]ports.File, 0, len(attachments))
	seen := make(map[string]int, len(attachments))

	for i, att := range attachments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := SanitizeName(att.Name, i)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: %w", att.Name, err)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = withSuffix(name, n)
		} else {
			seen[name] = 1
		}

		content, err := p.load(ctx, att.URL)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: %w", att.Name, err)
		}
		logger.Debug("[Attachments] decoded %s (%d bytes)", name, len(content))
		files = append(files, ports.File{Path: name, Content: content})
	}
	return files, nil
}

func (p *Processor) load(ctx context.Context, raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if isDataURI(raw) {
		content, err := decodeDataURI(raw)
		if err != nil {
			return nil, err
		}
		if int64(len(content)) > p.maxBytes {
			return nil, ErrTooLarge
		}
		return content, nil
	}
	if !p.allowRemote {
		return nil, fmt.Errorf("unsupported attachment url; only data: URIs are accepted")
	}
	return p.fetch(ctx, raw)
}

func (p *Processor) fetch(ctx context.Context, raw string) ([]byte, error) {
	target, err := httpclient.ValidateOutboundURL(raw, p.urlOptions)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if int64(len(content)) > p.maxBytes {
		return nil, ErrTooLarge
	}
	if len(content) == 0 {
		return nil, ErrEmptyPayload
	}
	return content, nil
}

func isDataURI(uri string) bool {
	return strings.HasPrefix(strings.ToLower(uri), "data:")
}

func decodeDataURI(uri string) ([]byte, error) {
	match := dataURIPattern.FindStringSubmatch(uri)
	if match == nil {
		return nil, fmt.Errorf("malformed data URI")
	}
	meta := strings.ToLower(match[2])
	payload := strings.TrimSpace(match[3])
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	var (
		decoded []byte
		err     error
	)
	if strings.Contains(meta, ";base64") {
		decoded, err = DecodeBase64(payload)
	} else {
		var text string
		text, err = url.PathUnescape(payload)
		decoded = []byte(text)
	}
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	if len(decoded) == 0 {
		return nil, ErrEmptyPayload
	}
	return decoded, nil
}

// SanitizeName maps a client-supplied name onto a flat repository path.
// Empty names become "attachment-<n>".
func SanitizeName(name string, index int) (string, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	base = unsafeNameRune.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, ".")
	if base == "" || base == "_" || base == "/" {
		base = fmt.Sprintf("attachment-%d", index+1)
	}
	if len(base) > 100 {
		base = base[:100]
	}
	if _, reserved := reservedNames[strings.ToLower(base)]; reserved {
		return "", ErrReservedName
	}
	return base, nil
}

func withSuffix(name string, n int) string {
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n+1, ext)
}
