package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

// distFS mirrors the shape of the embedded frontend: an app shell at the
// root and hashed build artifacts under assets/.
func distFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":         {Data: []byte("<!doctype html><title>agentchat</title>")},
		"favicon.ico":        {Data: []byte("icon")},
		"assets/app-3f2a.js": {Data: []byte("console.log('chat')")},
	}
}

func TestStaticHandler(t *testing.T) {
	h := newStaticHandler(distFS())

	get := func(t *testing.T, p string) *httptest.ResponseRecorder {
		t.Helper()
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, p, http.NoBody))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: status = %d, want 200", p, w.Code)
		}
		return w
	}

	t.Run("RootServesShell", func(t *testing.T) {
		w := get(t, "/")
		if !strings.Contains(w.Body.String(), "agentchat") {
			t.Errorf("body = %q, want the app shell", w.Body.String())
		}
		if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
			t.Errorf("Content-Type = %q, want text/html", got)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-cache" {
			t.Errorf("Cache-Control = %q, want no-cache", got)
		}
	})

	t.Run("Asset", func(t *testing.T) {
		w := get(t, "/assets/app-3f2a.js")
		if got := w.Body.String(); got != "console.log('chat')" {
			t.Errorf("body = %q", got)
		}
		if got := w.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
			t.Errorf("Cache-Control = %q, want immutable", got)
		}
	})

	t.Run("ClientRouteFallsBackToShell", func(t *testing.T) {
		w := get(t, "/sessions/abc/history-view")
		if !strings.Contains(w.Body.String(), "agentchat") {
			t.Errorf("body = %q, want the app shell", w.Body.String())
		}
		if got := w.Header().Get("Cache-Control"); got != "no-cache" {
			t.Errorf("Cache-Control = %q, want no-cache", got)
		}
	})

	t.Run("TraversalIsCleaned", func(t *testing.T) {
		// path.Clean collapses the traversal; the shell answers.
		w := get(t, "/../../etc/passwd")
		if !strings.Contains(w.Body.String(), "agentchat") {
			t.Errorf("body = %q, want the app shell", w.Body.String())
		}
	})
}

func TestAcceptedEncodings(t *testing.T) {
	tests := []struct {
		header string
		want   []string
	}{
		{"gzip, br", []string{"gzip", "br"}},
		{"zstd;q=1.0, gzip;q=0.5", []string{"zstd", "gzip"}},
		{"", nil},
		{"identity", []string{"identity"}},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got := acceptedEncodings(tt.header)
			if len(got) != len(tt.want) {
				t.Fatalf("acceptedEncodings(%q) = %v, want %v", tt.header, got, tt.want)
			}
			for _, name := range tt.want {
				if !got[name] {
					t.Errorf("acceptedEncodings(%q) missing %q", tt.header, name)
				}
			}
		})
	}
}
