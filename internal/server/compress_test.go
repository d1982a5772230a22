package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var testDecoders = map[string]func(t *testing.T, r io.Reader) io.Reader{
	"zstd": func(t *testing.T, r io.Reader) io.Reader {
		dec, err := zstd.NewReader(r)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(dec.Close)
		return dec
	},
	"br": func(t *testing.T, r io.Reader) io.Reader {
		return brotli.NewReader(r)
	},
	"gzip": func(t *testing.T, r io.Reader) io.Reader {
		gz, err := gzip.NewReader(r)
		if err != nil {
			t.Fatal(err)
		}
		return gz
	},
}

const compressBody = "the quick brown fox jumps over the lazy dog, twice over"

func compressEcho(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, compressBody)
}

func TestCompressMiddleware(t *testing.T) {
	h := compressMiddleware(http.HandlerFunc(compressEcho))
	tests := []struct {
		accept string
		want   string
	}{
		{"zstd", "zstd"},
		{"br", "br"},
		{"gzip", "gzip"},
		// Preference order wins over header order.
		{"gzip, zstd", "zstd"},
		{"gzip;q=0.8, br", "br"},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Accept-Encoding", tt.accept)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if got := w.Header().Get("Content-Encoding"); got != tt.want {
				t.Fatalf("Content-Encoding = %q, want %q", got, tt.want)
			}
			if got := w.Header().Get("Vary"); got != "Accept-Encoding" {
				t.Errorf("Vary = %q", got)
			}
			raw, err := io.ReadAll(testDecoders[tt.want](t, w.Body))
			if err != nil {
				t.Fatal(err)
			}
			if string(raw) != compressBody {
				t.Errorf("decoded body = %q, want %q", raw, compressBody)
			}
		})
	}
}

func TestCompressMiddlewareNoAccept(t *testing.T) {
	h := compressMiddleware(http.HandlerFunc(compressEcho))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if got := w.Header().Get("Content-Encoding"); got != "" {
		t.Fatalf("Content-Encoding = %q, want none", got)
	}
	if got := w.Body.String(); got != compressBody {
		t.Errorf("body = %q, want plain text", got)
	}
}

func TestCompressMiddlewareSkipsEventStream(t *testing.T) {
	h := compressMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {}\n\n")
	}))
	req := httptest.NewRequest(http.MethodGet, "/chat", http.NoBody)
	req.Header.Set("Accept-Encoding", "zstd, br, gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Content-Encoding"); got != "" {
		t.Fatalf("Content-Encoding = %q, want none for an event stream", got)
	}
	if got := w.Body.String(); got != "data: {}\n\n" {
		t.Errorf("body = %q, want the raw frame", got)
	}
}

func TestCompressMiddlewareSkipsPreEncoded(t *testing.T) {
	h := compressMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "identity")
		_, _ = io.WriteString(w, compressBody)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Content-Encoding"); got != "identity" {
		t.Fatalf("Content-Encoding = %q, want identity untouched", got)
	}
	if got := w.Body.String(); got != compressBody {
		t.Errorf("body = %q, want untouched", got)
	}
}

// Frontend assets travel through the same middleware as API responses.
func TestCompressMiddlewareStaticAssets(t *testing.T) {
	h := compressMiddleware(newStaticHandler(distFS()))
	req := httptest.NewRequest(http.MethodGet, "/assets/app-3f2a.js", http.NoBody)
	req.Header.Set("Accept-Encoding", "br")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Encoding"); got != "br" {
		t.Fatalf("Content-Encoding = %q, want br", got)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/javascript") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	raw, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "console.log('chat')" {
		t.Errorf("decoded asset = %q", raw)
	}
}
