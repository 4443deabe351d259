package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/archives/1605.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>season 1605</body></html>")
	})
	mux.HandleFunc("/latin1.htm", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<html><body>Jos\xe9</body></html>"))
	})
	mux.HandleFunc("/moved.htm", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/archives/1605.html", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(5*time.Second, zerolog.Nop())

	body, err := f.Fetch(context.Background(), srv.URL+"/archives/1605.html")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if body != "<html><body>season 1605</body></html>" {
		t.Errorf("unexpected body %q", body)
	}

	body, err = f.Fetch(context.Background(), srv.URL+"/latin1.htm")
	if err != nil {
		t.Fatalf("Fetch latin1: %v", err)
	}
	if body != "<html><body>José</body></html>" {
		t.Errorf("latin1 page not decoded, got %q", body)
	}

	body, err = f.Fetch(context.Background(), srv.URL+"/moved.htm")
	if err != nil {
		t.Fatalf("Fetch redirect: %v", err)
	}
	if body != "<html><body>season 1605</body></html>" {
		t.Errorf("redirect not followed, got %q", body)
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(5*time.Second, zerolog.Nop())

	_, err := f.Fetch(context.Background(), srv.URL+"/archives/missing.htm")
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", terr.StatusCode)
	}
}

func TestFetchWithFallback(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(5*time.Second, zerolog.Nop())

	body, err := FetchWithFallback(context.Background(), f, srv.URL+"/archives/1605.htm")
	if err != nil {
		t.Fatalf("FetchWithFallback: %v", err)
	}
	if body != "<html><body>season 1605</body></html>" {
		t.Errorf("unexpected body %q", body)
	}

	if _, err := FetchWithFallback(context.Background(), f, srv.URL+"/archives/0000.htm"); err == nil {
		t.Error("expected an error when both extensions are missing")
	}
}

func TestAlternateExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"http://x/archives/1605.htm", "http://x/archives/1605.html", true},
		{"http://x/archives/1605.html", "http://x/archives/1605.htm", true},
		{"http://x/archives/1605.php", "", false},
	}
	for _, tt := range tests {
		got, ok := AlternateExtension(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("AlternateExtension(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestExtractArchiveLinks(t *testing.T) {
	index := `<html><body>
		<a href="archives/1605.htm">May 2016</a>
		<a href="leagues.htm">Current</a>
		<a href="/club-squash/archives/1412-1501.htm">Dec 2014</a>
		<a href="archives/1605.htm">May 2016 again</a>
		<a href="archives/1509.html#top">Sep 2015</a>
		<a href="archives/old/1001.htm">nested</a>
	</body></html>`

	links, err := ExtractArchiveLinks(index)
	if err != nil {
		t.Fatalf("ExtractArchiveLinks: %v", err)
	}
	want := []ArchiveLink{
		{Href: "archives/1605.htm", File: "1605.htm", Key: "1605"},
		{Href: "/club-squash/archives/1412-1501.htm", File: "1412-1501.htm", Key: "1412-1501"},
		{Href: "archives/1509.html#top", File: "1509.html", Key: "1509"},
	}
	if diff := cmp.Diff(want, links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveRelativeURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"http://club.example.org/squash/archives.htm", "archives/1605.htm", "http://club.example.org/squash/archives/1605.htm"},
		{"http://club.example.org/squash/archives.htm", "/other/1605.htm", "http://club.example.org/other/1605.htm"},
		{"club.example.org/squash/", "a.htm", "https://club.example.org/squash/a.htm"},
		{"http://club.example.org/", "https://elsewhere.org/x.htm", "https://elsewhere.org/x.htm"},
	}
	for _, tt := range tests {
		if got := ResolveRelativeURL(tt.base, tt.ref); got != tt.want {
			t.Errorf("ResolveRelativeURL(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}
