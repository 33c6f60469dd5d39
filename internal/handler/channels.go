package handler

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"hls-gateway-go/internal/catalog"
)

// ChannelsHandler serves the read-only channel registry.
type ChannelsHandler struct {
	registry *catalog.Registry
	proxy    *ProxyHandler
}

// NewChannelsHandler creates a ChannelsHandler. The proxy handler is needed
// to mint ready-to-play gateway URLs for resolved channels.
func NewChannelsHandler(registry *catalog.Registry, proxy *ProxyHandler) *ChannelsHandler {
	return &ChannelsHandler{registry: registry, proxy: proxy}
}

// resolveResponse mirrors the shape the player UI consumes.
type resolveResponse struct {
	ChannelName    string `json:"channel_name"`
	MulticastIP    string `json:"multicast_ip"`
	HeadendID      string `json:"headend_id"`
	StreamURLHTTPS string `json:"stream_url_https"`
	StreamURLLocal string `json:"stream_url_local,omitempty"`
	ProxyURL       string `json:"proxy_url,omitempty"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
}

// List returns every channel in the registry.
func (h *ChannelsHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Channels())
}

// Resolve maps a free-text query to a channel. An unmatched query is a valid
// resolution result, not an error: the response carries status "not_found"
// with a 200 so the UI can render it directly.
func (h *ChannelsHandler) Resolve(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return errorJSON(c, http.StatusBadRequest, "invalid q parameter", "missing required query parameter: q")
	}

	ch, ok := h.registry.Lookup(query)
	if !ok {
		return c.JSON(http.StatusOK, resolveResponse{
			ChannelName: query,
			Status:      "not_found",
			Message:     "channel not configured in CDN",
		})
	}

	return c.JSON(http.StatusOK, resolveResponse{
		ChannelName:    ch.Name,
		MulticastIP:    ch.MulticastIP,
		HeadendID:      ch.HeadendID,
		StreamURLHTTPS: ch.StreamURLHTTPS,
		StreamURLLocal: ch.StreamURLLocal,
		ProxyURL:       h.proxy.ProxyBase(c) + url.QueryEscape(ch.StreamURLHTTPS),
		Status:         "found",
	})
}
