// Package model defines shared types for the gateway.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest represents a client request to be forwarded to an upstream origin.
// ProxyBase is the prefix rewritten playlist URIs are appended to; it ends in
// "?url=" so a percent-encoded absolute URL completes it.
type ProxyRequest struct {
	Ctx       context.Context
	Method    string
	Target    *url.URL
	Range     string
	ProxyBase string
}

// UpstreamResponse represents the upstream response to be relayed back.
// FinalURL is the post-redirect URL; relative URIs inside a playlist body
// must be resolved against it, not against the originally requested target.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	FinalURL   *url.URL
}
