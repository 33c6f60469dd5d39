// Package manifest classifies HLS playlist responses and rewrites playlist
// URIs so that segment, variant, key and map fetches re-enter the gateway.
package manifest

import (
	"net/url"
	"regexp"
	"strings"
)

// ContentType is the canonical playlist MIME type set on rewritten responses.
const ContentType = "application/vnd.apple.mpegurl"

// playlistMIMETokens are Content-Type fragments that identify a playlist.
var playlistMIMETokens = []string{
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"audio/mpegurl",
	"audio/x-mpegurl",
}

// uriAttrPattern matches quoted URI attributes inside directive lines, as used
// by EXT-X-KEY, EXT-X-MAP, EXT-X-MEDIA and EXT-X-I-FRAME-STREAM-INF.
var uriAttrPattern = regexp.MustCompile(`URI="([^"]+)"`)

// IsPlaylist reports whether a response should be treated as an HLS playlist.
// Content-Type alone is not trusted: misconfigured origins serve manifests as
// text/plain, so the URL path extension is checked as well.
func IsPlaylist(contentType string, u *url.URL) bool {
	ct := strings.ToLower(contentType)
	for _, token := range playlistMIMETokens {
		if strings.Contains(ct, token) {
			return true
		}
	}
	if u != nil && strings.HasSuffix(strings.ToLower(u.Path), ".m3u8") {
		return true
	}
	return false
}

// Rewrite replaces every URI reference in a playlist body with a proxied form
// so that follow-on fetches flow back through the gateway. base must be the
// post-redirect URL the body was fetched from; proxyBase is the prefix a
// percent-encoded absolute URL completes (".../proxy?url=").
//
// The rewrite is line-oriented and preserves line order and count. A URI that
// fails to parse leaves its line unmodified rather than failing the whole
// manifest; the number of such lines is returned alongside the result.
func Rewrite(body string, base *url.URL, proxyBase string) (string, int) {
	lines := strings.Split(body, "\n")
	failed := 0

	for i, line := range lines {
		// Tolerate CRLF input; output uses bare newlines.
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			lines[i] = line

		case strings.HasPrefix(trimmed, "#"):
			if !uriAttrPattern.MatchString(line) {
				lines[i] = line
				continue
			}
			lines[i] = uriAttrPattern.ReplaceAllStringFunc(line, func(m string) string {
				raw := uriAttrPattern.FindStringSubmatch(m)[1]
				proxied, ok := proxyURI(raw, base, proxyBase)
				if !ok {
					failed++
					return m
				}
				return `URI="` + proxied + `"`
			})

		default:
			proxied, ok := proxyURI(trimmed, base, proxyBase)
			if !ok {
				failed++
				lines[i] = line
				continue
			}
			lines[i] = proxied
		}
	}

	return strings.Join(lines, "\n"), failed
}

// proxyURI resolves raw against base and wraps it in the proxy prefix.
func proxyURI(raw string, base *url.URL, proxyBase string) (string, bool) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if !abs.IsAbs() {
		return "", false
	}
	return proxyBase + url.QueryEscape(abs.String()), true
}
