package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M70 40h45l25 25v95H70z" fill="none" stroke="#999" stroke-width="6"/><path d="M115 40v25h25" fill="none" stroke="#999" stroke-width="6"/><text x="100" y="185" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">DOCUMENT</text></svg>`

// AttachmentServer serves uploaded request attachments (payslips, support
// documents). Missing files fall back to a placeholder so broken links
// render gracefully in clients.
func AttachmentServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "private, max-age=3600")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
