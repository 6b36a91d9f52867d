package core

import (
	"context"
	"io"
)

// Fetched is remote content ready to be stored. The caller closes Body.
type Fetched struct {
	Body        io.ReadCloser
	ContentType string
	// SuggestedName comes from the server (Content-Disposition), may be empty.
	SuggestedName string
}

// Fetcher retrieves remote content for the desktop download operations.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Fetched, error)
}
