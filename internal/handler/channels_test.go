package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newChannelsHandler(t *testing.T) *ChannelsHandler {
	t.Helper()
	cfg := testConfig("https://gw")
	proxy := newTestHandler(cfg)
	return NewChannelsHandler(testRegistry(t), proxy)
}

func TestChannelsList(t *testing.T) {
	h := newChannelsHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/channels", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var channels []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &channels); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(channels) == 0 {
		t.Fatal("expected non-empty channel list")
	}
	if channels[0]["channel_name"] == "" {
		t.Error("expected channel_name field on entries")
	}
}

func TestChannelsResolve_Found(t *testing.T) {
	h := newChannelsHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/channels/resolve?q=tv+4", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Resolve(c); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "found" {
		t.Fatalf("status = %q, want %q", body["status"], "found")
	}
	if body["channel_name"] != "tv4" {
		t.Errorf("channel_name = %q, want %q (whitespace-insensitive match)", body["channel_name"], "tv4")
	}
	if body["stream_url_https"] == "" {
		t.Error("expected stream_url_https to be populated")
	}

	wantPrefix := "https://gw/proxy?url="
	if !strings.HasPrefix(body["proxy_url"], wantPrefix) {
		t.Fatalf("proxy_url = %q, want prefix %q", body["proxy_url"], wantPrefix)
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(body["proxy_url"], wantPrefix))
	if err != nil {
		t.Fatalf("QueryUnescape: %v", err)
	}
	if decoded != body["stream_url_https"] {
		t.Errorf("proxy_url target = %q, want %q", decoded, body["stream_url_https"])
	}
}

func TestChannelsResolve_NotFound(t *testing.T) {
	h := newChannelsHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/channels/resolve?q=no-such-channel-xyz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Resolve(c); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// An unmatched query is a valid resolution result, not an HTTP error.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "not_found" {
		t.Errorf("status = %q, want %q", body["status"], "not_found")
	}
	if body["message"] == "" {
		t.Error("expected populated message for not_found")
	}
}

func TestChannelsResolve_MissingQuery(t *testing.T) {
	h := newChannelsHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/channels/resolve", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Resolve(c); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
