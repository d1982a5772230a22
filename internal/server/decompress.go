// Request body decompression based on Content-Encoding.
package server

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/server/dto"
)

// requestDecoders maps a Content-Encoding to a body decoder. The zstd
// decoder caps memory so a hostile body cannot balloon the process.
var requestDecoders = map[string]func(io.Reader) (io.ReadCloser, error){
	"zstd": func(r io.Reader) (io.ReadCloser, error) {
		dec, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(10<<20))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	},
	"br": func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(brotli.NewReader(r)), nil
	},
	"gzip": func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
}

// decompressMiddleware swaps r.Body for a decoding reader before handlers
// see it.
func decompressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ce := r.Header.Get("Content-Encoding")
		if ce == "" {
			next.ServeHTTP(w, r)
			return
		}
		open, ok := requestDecoders[ce]
		if !ok {
			writeError(w, dto.BadRequest("unsupported Content-Encoding: "+ce))
			return
		}
		body, err := open(r.Body)
		if err != nil {
			writeError(w, dto.BadRequest("invalid "+ce+" body"))
			return
		}
		r.Body = body
		r.Header.Del("Content-Encoding")
		r.ContentLength = -1
		next.ServeHTTP(w, r)
	})
}
