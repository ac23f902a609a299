// Package publish uploads the finished report document to the external
// artifact store. Publishing is best effort: the document survives locally
// when the upload fails.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/routemaps/routemaps/internal/resilience"
)

// HTTPPublisher PUTs documents to a blob-gateway endpoint and returns the
// resulting object URL.
type HTTPPublisher struct {
	client   *resilience.Client
	endpoint string
	logger   zerolog.Logger
}

// NewHTTPPublisher creates a publisher targeting the given base endpoint.
func NewHTTPPublisher(endpoint string, logger zerolog.Logger) *HTTPPublisher {
	return &HTTPPublisher{
		client:   resilience.NewClient(resilience.ClientConfig{Name: "artifact-store"}),
		endpoint: strings.TrimRight(endpoint, "/"),
		logger:   logger,
	}
}

// Publish uploads the file at path with the given content type and returns
// the stored object's URL.
func (p *HTTPPublisher) Publish(ctx context.Context, path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}

	target := p.endpoint + "/" + url.PathEscape(filepath.Base(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload document: unexpected status %d", resp.StatusCode)
	}

	p.logger.Info().
		Str("target", target).
		Int("bytes", len(data)).
		Msg("document uploaded")

	return target, nil
}
