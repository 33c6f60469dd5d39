package manifest

import (
	"net/url"
	"strings"
	"testing"
)

const proxyBase = "https://gw/proxy?url="

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestRewrite_RelativeSegment(t *testing.T) {
	base := mustParse(t, "https://host/path/playlist.m3u8")

	got, failed := Rewrite("segment001.ts", base, proxyBase)

	want := "https://gw/proxy?url=https%3A%2F%2Fhost%2Fpath%2Fsegment001.ts"
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
}

func TestRewrite_KeyURIAttribute(t *testing.T) {
	base := mustParse(t, "https://host/path/playlist.m3u8")

	got, failed := Rewrite(`#EXT-X-KEY:METHOD=AES-128,URI="key.bin"`, base, proxyBase)

	want := `#EXT-X-KEY:METHOD=AES-128,URI="https://gw/proxy?url=https%3A%2F%2Fhost%2Fpath%2Fkey.bin"`
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if !strings.Contains(got, "METHOD=AES-128") {
		t.Error("non-URI portion of the directive line must be untouched")
	}
}

func TestRewrite_CommentPassthrough(t *testing.T) {
	base := mustParse(t, "https://host/path/playlist.m3u8")

	for _, line := range []string{"#EXTM3U", "#EXT-X-VERSION:3", "#EXTINF:10.0,", ""} {
		got, failed := Rewrite(line, base, proxyBase)
		if got != line {
			t.Errorf("Rewrite(%q) = %q, want unchanged", line, got)
		}
		if failed != 0 {
			t.Errorf("Rewrite(%q) failed = %d, want 0", line, failed)
		}
	}
}

func TestRewrite_FullPlaylist(t *testing.T) {
	base := mustParse(t, "https://host/live/chunklist.m3u8")
	input := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:10",
		`#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/k1",IV=0x99`,
		"#EXTINF:9.843,",
		"seg-100.ts",
		"#EXTINF:9.843,",
		"../other/seg-101.ts",
		"",
	}, "\n")

	got, failed := Rewrite(input, base, proxyBase)

	if failed != 0 {
		t.Fatalf("failed = %d, want 0", failed)
	}

	gotLines := strings.Split(got, "\n")
	inLines := strings.Split(input, "\n")
	if len(gotLines) != len(inLines) {
		t.Fatalf("line count = %d, want %d", len(gotLines), len(inLines))
	}

	if gotLines[0] != "#EXTM3U" || gotLines[1] != "#EXT-X-VERSION:3" {
		t.Error("tag lines must pass through unchanged")
	}
	if want := `#EXT-X-KEY:METHOD=AES-128,URI="https://gw/proxy?url=https%3A%2F%2Fkeys.example.com%2Fk1",IV=0x99`; gotLines[3] != want {
		t.Errorf("key line = %q, want %q", gotLines[3], want)
	}
	if want := proxyBase + url.QueryEscape("https://host/live/seg-100.ts"); gotLines[5] != want {
		t.Errorf("segment line = %q, want %q", gotLines[5], want)
	}
	if want := proxyBase + url.QueryEscape("https://host/other/seg-101.ts"); gotLines[7] != want {
		t.Errorf("parent-relative segment line = %q, want %q", gotLines[7], want)
	}
}

func TestRewrite_CRLFInput(t *testing.T) {
	base := mustParse(t, "https://host/playlist.m3u8")
	input := "#EXTM3U\r\nseg.ts\r\n"

	got, _ := Rewrite(input, base, proxyBase)

	if strings.Contains(got, "\r") {
		t.Error("output must use bare newlines")
	}
	gotLines := strings.Split(got, "\n")
	if len(gotLines) != 3 {
		t.Fatalf("line count = %d, want 3", len(gotLines))
	}
	if want := proxyBase + url.QueryEscape("https://host/seg.ts"); gotLines[1] != want {
		t.Errorf("segment line = %q, want %q", gotLines[1], want)
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	base := mustParse(t, "https://host/playlist.m3u8")
	input := "#EXTM3U\nseg.ts\n#EXT-X-KEY:URI=\"key.bin\"\n"

	first, _ := Rewrite(input, base, proxyBase)
	second, _ := Rewrite(input, base, proxyBase)

	if first != second {
		t.Errorf("Rewrite is not a pure function of its inputs:\nfirst  %q\nsecond %q", first, second)
	}
}

func TestRewrite_RoundTrip(t *testing.T) {
	base := mustParse(t, "https://host/a/b/playlist.m3u8")

	got, _ := Rewrite("../c/seg.ts", base, proxyBase)

	encoded := strings.TrimPrefix(got, proxyBase)
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		t.Fatalf("QueryUnescape: %v", err)
	}
	if want := "https://host/a/c/seg.ts"; decoded != want {
		t.Errorf("round-tripped URI = %q, want %q", decoded, want)
	}
}

func TestRewrite_BadURIFailSoft(t *testing.T) {
	base := mustParse(t, "https://host/playlist.m3u8")
	bad := "http://bad host/%zz" // spaces and bad escape: unparsable
	input := "#EXTM3U\n" + bad + "\ngood.ts"

	got, failed := Rewrite(input, base, proxyBase)

	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	gotLines := strings.Split(got, "\n")
	if len(gotLines) != 3 {
		t.Fatalf("line count = %d, want 3", len(gotLines))
	}
	if gotLines[1] != bad {
		t.Errorf("bad line = %q, want left unmodified %q", gotLines[1], bad)
	}
	if want := proxyBase + url.QueryEscape("https://host/good.ts"); gotLines[2] != want {
		t.Errorf("good line = %q, want %q (one bad reference must not break the rest)", gotLines[2], want)
	}
}

func TestIsPlaylist(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		rawURL      string
		want        bool
	}{
		{"apple mime", "application/vnd.apple.mpegurl", "https://h/stream", true},
		{"x-mpegurl mime", "application/x-mpegurl; charset=utf-8", "https://h/stream", true},
		{"text/plain with m3u8 extension", "text/plain", "https://h/live/index.m3u8", true},
		{"uppercase extension", "text/plain", "https://h/live/INDEX.M3U8", true},
		{"segment", "video/mp2t", "https://h/live/seg-1.ts", false},
		{"octet-stream no extension", "application/octet-stream", "https://h/live/seg", false},
		{"m3u8 in query only", "video/mp2t", "https://h/seg.ts?from=index.m3u8", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := mustParse(t, tt.rawURL)
			if got := IsPlaylist(tt.contentType, u); got != tt.want {
				t.Errorf("IsPlaylist(%q, %q) = %v, want %v", tt.contentType, tt.rawURL, got, tt.want)
			}
		})
	}
}
