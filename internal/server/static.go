// Embedded frontend serving with SPA fallback.
//
// dist/ ships uncompressed; wire compression for assets is handled by the
// response middleware like any other response.
package server

import (
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

// newStaticHandler serves the embedded frontend. Unknown paths resolve to
// the app shell so client-side routes survive a reload.
func newStaticHandler(dist fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" || name == "." {
			name = "index.html"
		}
		if _, err := fs.Stat(dist, name); err != nil {
			name = "index.html"
		}

		f, err := dist.Open(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			http.NotFound(w, r)
			return
		}

		if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		// Hashed filenames under assets/ never change content; the app
		// shell must always be revalidated so deploys take effect.
		if strings.HasPrefix(name, "assets/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		// embed.FS and fstest.MapFS files implement io.ReadSeeker.
		http.ServeContent(w, r, name, stat.ModTime(), f.(io.ReadSeeker))
	}
}
