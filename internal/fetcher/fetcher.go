// Package fetcher provides the transport used to download GBFS documents.
package fetcher

import (
	"context"
	"net/url"
)

// Requester defines the interface for fetching a remote document.
type Requester interface {
	// Request fetches rawURL and returns the response body. Text bodies are
	// normalized to UTF-8 unless opts.Raw is set.
	Request(ctx context.Context, rawURL string, opts RequestOptions) ([]byte, error)
}

// RequestOptions tunes a single request. The zero value is a plain GET.
type RequestOptions struct {
	Method   string     // default GET
	Params   url.Values // appended to the query string
	Body     []byte
	Raw      bool   // return the body bytes untouched
	Encoding string // charset assumed for text bodies without one; default UTF-8
}

// Cache stores response bodies keyed by URL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte)
}

// RequesterFunc adapts a function to the Requester interface.
type RequesterFunc func(ctx context.Context, rawURL string, opts RequestOptions) ([]byte, error)

// Request calls f.
func (f RequesterFunc) Request(ctx context.Context, rawURL string, opts RequestOptions) ([]byte, error) {
	return f(ctx, rawURL, opts)
}
