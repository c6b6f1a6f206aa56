// Package pdf assembles document aggregates into HTML and hands the markup to
// a black-box render collaborator that returns a PDF byte stream.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Renderer turns HTML into a PDF byte stream. Rendering internals are not
// this package's concern.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// HTTPRenderer posts the markup to an external HTML-to-PDF service
// (Gotenberg-compatible: accepts text/html, answers application/pdf).
type HTTPRenderer struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPRenderer() *HTTPRenderer {
	endpoint := os.Getenv("PDF_RENDERER_URL")
	if endpoint == "" {
		endpoint = "http://localhost:3000/forms/chromium/convert/html"
	}
	return &HTTPRenderer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *HTTPRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewBufferString(html))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/html")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdf renderer returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
