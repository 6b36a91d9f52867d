package httpfetch

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/melih-ucgun/pldownloader/internal/core"
)

type Options struct {
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
	Logger    *slog.Logger
}

// Fetcher downloads over HTTP(S) for the desktop backend.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, userAgent: opts.UserAgent, logger: logger}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*core.Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid download url: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	f.logger.Debug("Fetching", "url", rawURL)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed with status: %s", resp.Status)
	}

	return &core.Fetched{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		SuggestedName: suggestedName(resp.Header.Get("Content-Disposition")),
	}, nil
}

// suggestedName extracts the filename parameter of a Content-Disposition header.
func suggestedName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	// Only the leaf is trusted.
	name := path.Base(params["filename"])
	if name == "." || name == "/" {
		return ""
	}
	return name
}
