// Package service implements the core gateway fetch/classify/rewrite logic.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"hls-gateway-go/internal/client"
	"hls-gateway-go/internal/config"
	"hls-gateway-go/internal/manifest"
	"hls-gateway-go/internal/metrics"
	"hls-gateway-go/internal/model"
)

// ErrHostNotAllowed is returned when the target host is outside the configured allowlist.
var ErrHostNotAllowed = errors.New("target host is not in the allowed_hosts list")

// maxPlaylistBytes bounds how much of a playlist body is buffered for rewriting.
// Playlists are small text files; anything larger is not a playlist we want to
// hold in memory.
const maxPlaylistBytes = 10 * 1024 * 1024

// forwardableResponseHeaders are the only upstream headers relayed to the client.
// The set covers what browser players need for range seeking and caching.
var forwardableResponseHeaders = map[string]bool{
	"Content-Type":   true,
	"Cache-Control":  true,
	"Accept-Ranges":  true,
	"Content-Length": true,
	"Content-Range":  true,
	"Etag":           true,
	"Last-Modified":  true,
	"Date":           true,
}

// GatewayService fetches a target URL on behalf of the client and decides
// between the rewritten-playlist path and the opaque streaming path.
type GatewayService struct {
	client  *client.UpstreamClient
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	allowed map[string]bool
}

// NewGatewayService creates a GatewayService.
// The metrics parameter is optional; pass nil to disable rewrite metrics.
func NewGatewayService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *GatewayService {
	allowed := make(map[string]bool, len(cfg.Proxy.AllowedHosts))
	for _, h := range cfg.Proxy.AllowedHosts {
		allowed[strings.ToLower(h)] = true
	}

	return &GatewayService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "gateway_service"),
		metrics: m,
		allowed: allowed,
	}
}

// Fetch retrieves the target and returns the response to relay. For playlist
// responses the body is buffered, rewritten against the post-redirect URL, and
// returned with the canonical playlist content type; everything else streams
// through untouched. The caller is responsible for closing the response body.
func (s *GatewayService) Fetch(pr *model.ProxyRequest) (*model.UpstreamResponse, error) {
	if len(s.allowed) > 0 && !s.allowed[strings.ToLower(pr.Target.Hostname())] {
		return nil, ErrHostNotAllowed
	}

	resp, err := s.client.Fetch(pr.Ctx, pr.Method, pr.Target, s.buildHeader(pr))
	if err != nil {
		return nil, fmt.Errorf("fetch target: %w", err)
	}

	resp.Header = s.filterResponseHeaders(resp.Header)

	if s.shouldRewrite(pr, resp) {
		if err := s.rewritePlaylist(pr, resp); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}
	}

	return resp, nil
}

// shouldRewrite reports whether the response body is a playlist to rewrite.
// Only 200 GET responses qualify: non-2xx statuses pass through opaque so the
// player sees the real upstream failure, and HEAD responses have no body.
func (s *GatewayService) shouldRewrite(pr *model.ProxyRequest, resp *model.UpstreamResponse) bool {
	if pr.Method != http.MethodGet || resp.StatusCode != http.StatusOK {
		return false
	}
	return manifest.IsPlaylist(resp.Header.Get("Content-Type"), resp.FinalURL)
}

func (s *GatewayService) rewritePlaylist(pr *model.ProxyRequest, resp *model.UpstreamResponse) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return fmt.Errorf("read playlist body: %w", err)
	}
	_ = resp.Body.Close()

	rewritten, failures := manifest.Rewrite(string(body), resp.FinalURL, pr.ProxyBase)
	if failures > 0 {
		s.logger.Warn("playlist lines left unrewritten",
			"count", failures,
			"base", resp.FinalURL.String(),
		)
	}
	if s.metrics != nil {
		s.metrics.PlaylistsRewritten.Inc()
		s.metrics.RewriteLineFailures.Add(float64(failures))
	}

	// Body length changed; the stale upstream length must not survive.
	resp.Header.Set("Content-Type", manifest.ContentType)
	resp.Header.Del("Content-Length")
	resp.Body = io.NopCloser(strings.NewReader(rewritten))
	return nil
}

// buildHeader assembles the outbound request headers: a browser-like agent
// plus the client's Range header when present.
func (s *GatewayService) buildHeader(pr *model.ProxyRequest) http.Header {
	header := make(http.Header)
	header.Set("User-Agent", s.cfg.Upstream.UserAgent)
	header.Set("Accept", "*/*")
	if pr.Range != "" {
		header.Set("Range", pr.Range)
	}
	return header
}

func (s *GatewayService) filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	return dst
}
