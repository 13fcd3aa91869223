// Package fetch retrieves campaign pages using a session-scoped identity.
package fetch

import "context"

// Page is the raw result of fetching a single URL.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher fetches a URL, attaching the given session identity to the request.
// Implementations must honor ctx cancellation and return an error for any
// transport failure, including non-2xx responses.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, identity string) (Page, error)
}
