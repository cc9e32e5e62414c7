package httpclient

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestReadBodySnippet(t *testing.T) {
	if got := readBodySnippet(nil, "text/plain"); got != "" {
		t.Fatalf("expected empty snippet, got %q", got)
	}
	if got := readBodySnippet([]byte("  plain failure \n"), "text/plain"); got != "plain failure" {
		t.Fatalf("unexpected plain snippet %q", got)
	}

	html := []byte("<html><body><h1>Service</h1>\n<p>Unavailable</p></body></html>")
	if got := readBodySnippet(html, "text/html"); got != "Service Unavailable" {
		t.Fatalf("expected body text without title, got %q", got)
	}

	long := []byte(strings.Repeat("x", 2000))
	if got := readBodySnippet(long, "application/json"); len(got) != maxSnippetBytes {
		t.Fatalf("expected truncation to %d bytes, got %d", maxSnippetBytes, len(got))
	}

	accented := []byte("x" + strings.Repeat("é", 400))
	got := readBodySnippet(accented, "text/plain")
	if !utf8.ValidString(got) {
		t.Fatalf("truncated snippet split a rune: %q", got[len(got)-4:])
	}
	if len(got) > maxSnippetBytes || len(got) < maxSnippetBytes-utf8.UTFMax {
		t.Fatalf("unexpected truncated length %d", len(got))
	}
}
