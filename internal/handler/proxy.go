package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"hls-gateway-go/internal/config"
	"hls-gateway-go/internal/model"
	"hls-gateway-go/internal/service"
)

// ProxyHandler serves the /proxy endpoint: it tunnels HLS playlists and media
// segments through the gateway and maps upstream failures to JSON error bodies.
type ProxyHandler struct {
	service *service.GatewayService
	cfg     *config.Config
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.GatewayService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the target named by the url query parameter. Playlist bodies
// come back rewritten; everything else is streamed through unchanged with the
// upstream status preserved (including 206 for range requests).
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	target, err := parseTarget(c.QueryParam("url"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid url parameter", err.Error())
	}

	pr := &model.ProxyRequest{
		Ctx:       req.Context(),
		Method:    req.Method,
		Target:    target,
		Range:     req.Header.Get("Range"),
		ProxyBase: h.ProxyBase(c),
	}

	resp, err := h.service.Fetch(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	if req.Method == http.MethodHead {
		return nil
	}

	// Stream the upstream body directly to the client. If io.Copy fails
	// mid-stream (client disconnect, upstream stall), the status has already
	// been sent; the client gets a truncated body. Logged for observability.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"target_host", target.Host,
		)
	}

	return nil
}

// Preflight answers CORS preflight requests without touching the upstream.
// The Allow-Origin header itself is set by the CORS middleware.
func (h *ProxyHandler) Preflight(c echo.Context) error {
	header := c.Response().Header()
	header.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Range, Content-Type, Accept")
	header.Set("Access-Control-Max-Age", "86400")
	return c.NoContent(http.StatusNoContent)
}

// ProxyBase returns the prefix rewritten playlist URIs are built on. The
// configured public URL wins; otherwise the base is derived from the inbound
// request so rewritten URIs point back at whatever host the client reached.
func (h *ProxyHandler) ProxyBase(c echo.Context) string {
	base := h.cfg.Proxy.PublicURL
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	return strings.TrimRight(base, "/") + "/proxy?url="
}

// parseTarget validates the url query parameter before any network call.
func parseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("missing required query parameter: url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, errors.New("url must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("url scheme must be http or https")
	}
	return u, nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"target", c.QueryParam("url"),
	)

	if errors.Is(err, service.ErrHostNotAllowed) {
		return errorJSON(c, http.StatusBadRequest, "target host not allowed", service.ErrHostNotAllowed.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errorJSON(c, http.StatusGatewayTimeout, "upstream request timed out", err.Error())
	}

	if errors.Is(err, context.Canceled) {
		return errorJSON(c, http.StatusBadGateway, "client disconnected", err.Error())
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return errorJSON(c, http.StatusBadGateway, "upstream host unreachable", dnsErr.Error())
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return errorJSON(c, http.StatusGatewayTimeout, "upstream request timed out", err.Error())
		}
		return errorJSON(c, http.StatusBadGateway, "upstream connection failed", err.Error())
	}

	return errorJSON(c, http.StatusInternalServerError, "internal proxy error", err.Error())
}

// errorJSON writes the gateway's uniform error body.
func errorJSON(c echo.Context, code int, msg, details string) error {
	return c.JSON(code, map[string]string{
		"error":   msg,
		"details": details,
	})
}
