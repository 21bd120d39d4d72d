// Package intake acquires RFQ text for the pipeline: from a local file, a
// procurement-portal URL, or inline text. URLs are fetched over plain HTTP
// first; when the extracted text is too short to be a real RFQ the page is
// re-rendered in a headless browser, which covers script-heavy portals.
package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Source kinds recorded on acquired documents.
const (
	SourceFile   = "file"
	SourceURL    = "url"
	SourceInline = "inline"
)

// ErrEmptyDocument reports a source that yielded no usable text.
var ErrEmptyDocument = errors.New("document has no content")

// Document is one acquired RFQ with provenance. Text is already cleaned;
// Hash identifies the content regardless of where it came from.
type Document struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	Hash      string    `json:"hash"`
	Words     int       `json:"words"`
	Retrieved time.Time `json:"retrieved"`
}

// Options configures acquisition. Zero values fall back to the defaults.
type Options struct {
	// Timeout bounds the plain HTTP fetch.
	Timeout time.Duration
	// UserAgent is sent on HTTP requests.
	UserAgent string
	// UseBrowser enables the headless-browser fallback for pages whose
	// fetched text comes back shorter than MinContentLength.
	UseBrowser bool
	// BrowserTimeout bounds one browser rendering.
	BrowserTimeout time.Duration
	// MinContentLength is the shortest extracted text accepted without
	// trying the browser.
	MinContentLength int
}

func (o Options) normalize() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (compatible; SurveyAgent/1.0)"
	}
	if o.BrowserTimeout <= 0 {
		o.BrowserTimeout = 45 * time.Second
	}
	if o.MinContentLength <= 0 {
		o.MinContentLength = 500
	}
	return o
}

// Intake acquires RFQ documents.
type Intake struct {
	opts   Options
	logger *zap.Logger
}

// New creates an Intake with the given options.
func New(opts Options, logger *zap.Logger) *Intake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Intake{opts: opts.normalize(), logger: logger}
}

// FromString cleans inline RFQ text. The source label is recorded as given.
func (in *Intake) FromString(text, source string) (*Document, error) {
	if source == "" {
		source = SourceInline
	}
	return newDocument(Clean(text), source, SourceInline)
}

// FromFile reads and cleans an RFQ from a local text file.
func (in *Intake) FromFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	doc, err := newDocument(Clean(string(content)), path, SourceFile)
	if err != nil {
		return nil, err
	}
	in.logger.Debug("RFQ read from file",
		zap.String("path", path),
		zap.Int("words", doc.Words))
	return doc, nil
}

// FromURL fetches a page, extracts its main text, and cleans it. When the
// extraction comes back too short and the browser fallback is enabled, the
// page is rendered in a headless browser and extracted again; a browser
// failure falls back to whatever the plain fetch produced.
func (in *Intake) FromURL(ctx context.Context, rawURL string) (*Document, error) {
	res, err := in.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	in.logger.Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("html_bytes", len(res.HTML)))

	text, err := ExtractText(res.HTML)
	if err != nil {
		return nil, fmt.Errorf("content extraction failed: %w", err)
	}

	if in.opts.UseBrowser && len(strings.TrimSpace(text)) < in.opts.MinContentLength {
		in.logger.Debug("extracted text too short, rendering in browser",
			zap.String("url", rawURL),
			zap.Int("chars", len(text)),
			zap.Int("min", in.opts.MinContentLength))

		rendered, browserErr := in.render(ctx, rawURL)
		if browserErr != nil {
			in.logger.Warn("browser rendering failed, keeping fetched content",
				zap.String("url", rawURL),
				zap.Error(browserErr))
		} else if renderedText, extractErr := ExtractText(rendered); extractErr == nil {
			text = renderedText
		}
	}

	doc, err := newDocument(Clean(text), rawURL, SourceURL)
	if err != nil {
		return nil, err
	}
	in.logger.Info("RFQ acquired from URL",
		zap.String("url", rawURL),
		zap.Int("words", doc.Words))
	return doc, nil
}

func newDocument(text, source, kind string) (*Document, error) {
	if text == "" {
		return nil, fmt.Errorf("%s %q: %w", kind, source, ErrEmptyDocument)
	}

	sum := sha256.Sum256([]byte(text))
	return &Document{
		Text:      text,
		Source:    source,
		Kind:      kind,
		Hash:      hex.EncodeToString(sum[:]),
		Words:     len(strings.Fields(text)),
		Retrieved: time.Now().UTC(),
	}, nil
}
