// Package catalog provides the read-only channel registry and name lookup.
package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"hls-gateway-go/internal/config"
)

//go:embed channels.toml
var embeddedRegistry []byte

// Channel is one registry entry. StreamURLLocal is empty for channels that
// have no plain-HTTP headend endpoint.
type Channel struct {
	Name           string `toml:"name" json:"channel_name"`
	MulticastIP    string `toml:"multicast_ip" json:"multicast_ip"`
	HeadendID      string `toml:"headend_id" json:"headend_id"`
	StreamURLHTTPS string `toml:"stream_url_https" json:"stream_url_https"`
	StreamURLLocal string `toml:"stream_url_local" json:"stream_url_local,omitempty"`
}

type registryFile struct {
	Channels []Channel `toml:"channel"`
}

// Registry is the immutable channel table, loaded once at process start.
type Registry struct {
	channels []Channel
}

// Load builds the registry from catalog.path when configured, otherwise from
// the embedded channel table.
func Load(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	data := embeddedRegistry
	source := "embedded"

	if cfg.Catalog.Path != "" {
		b, err := os.ReadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", cfg.Catalog.Path, err)
		}
		data = b
		source = cfg.Catalog.Path
	}

	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", source, err)
	}
	if len(file.Channels) == 0 {
		return nil, fmt.Errorf("catalog: %s contains no channels", source)
	}

	for i, ch := range file.Channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("catalog: channel %d in %s has no name", i, source)
		}
	}

	logger.Info("channel registry loaded",
		"source", source,
		"channels", len(file.Channels),
	)

	return &Registry{channels: file.Channels}, nil
}

// Channels returns all registry entries.
func (r *Registry) Channels() []Channel {
	return r.channels
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	return len(r.channels)
}

// Lookup resolves a free-text query to a channel. A channel matches when its
// normalized name contains the normalized query or vice versa, so "tv 4"
// finds "tv4" and "tv4play" would find "tv4".
func (r *Registry) Lookup(query string) (Channel, bool) {
	q := normalize(query)
	if q == "" {
		return Channel{}, false
	}
	for _, ch := range r.channels {
		name := normalize(ch.Name)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			return ch, true
		}
	}
	return Channel{}, false
}

// normalize lowercases and strips all whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}
