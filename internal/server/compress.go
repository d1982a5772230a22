// Response compression negotiated from Accept-Encoding.
//
// Applies to API responses and embedded frontend assets alike, at fast
// compression levels. The chat stream is exempt: buffering an SSE response
// would defeat incremental delivery.
package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// responseEncoders in preference order, best ratio first.
var responseEncoders = []struct {
	name string
	open func(io.Writer) io.WriteCloser
}{
	{"zstd", func(w io.Writer) io.WriteCloser {
		enc, _ := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
		return enc
	}},
	{"br", func(w io.Writer) io.WriteCloser {
		return brotli.NewWriterLevel(w, 1)
	}},
	{"gzip", func(w io.Writer) io.WriteCloser {
		gz, _ := gzip.NewWriterLevel(w, gzip.BestSpeed)
		return gz
	}},
}

// compressMiddleware wraps next so bodies go out in the best encoding the
// client accepts.
func compressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accepted := acceptedEncodings(r.Header.Get("Accept-Encoding"))
		for _, e := range responseEncoders {
			if !accepted[e.name] {
				continue
			}
			ew := &encodedWriter{ResponseWriter: w, name: e.name, open: e.open}
			defer ew.close()
			next.ServeHTTP(ew, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// encodedWriter defers the compress-or-not decision until the handler's
// response headers are known.
type encodedWriter struct {
	http.ResponseWriter
	name string
	open func(io.Writer) io.WriteCloser

	enc         io.WriteCloser
	decided     bool
	passthrough bool
}

func (ew *encodedWriter) WriteHeader(code int) {
	ew.decide()
	ew.ResponseWriter.WriteHeader(code)
}

func (ew *encodedWriter) Write(b []byte) (int, error) {
	ew.decide()
	if ew.passthrough {
		return ew.ResponseWriter.Write(b)
	}
	return ew.enc.Write(b)
}

func (ew *encodedWriter) decide() {
	if ew.decided {
		return
	}
	ew.decided = true
	h := ew.Header()
	// An SSE response must reach the client frame by frame, and a body
	// that already carries an encoding stays as-is.
	if strings.HasPrefix(h.Get("Content-Type"), "text/event-stream") ||
		h.Get("Content-Encoding") != "" {
		ew.passthrough = true
		return
	}
	h.Del("Content-Length") // encoded size is unknown
	h.Set("Content-Encoding", ew.name)
	h.Add("Vary", "Accept-Encoding")
	ew.enc = ew.open(ew.ResponseWriter)
}

func (ew *encodedWriter) close() {
	if ew.enc != nil {
		_ = ew.enc.Close()
	}
}

// Flush lets SSE frames through the wrapper unbuffered.
func (ew *encodedWriter) Flush() {
	if f, ok := ew.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the inner writer to http.ResponseController.
func (ew *encodedWriter) Unwrap() http.ResponseWriter {
	return ew.ResponseWriter
}

// acceptedEncodings parses an Accept-Encoding header into the set of named
// codings, discarding quality parameters.
func acceptedEncodings(header string) map[string]bool {
	set := make(map[string]bool)
	for part := range strings.SplitSeq(header, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if name != "" {
			set[name] = true
		}
	}
	return set
}
