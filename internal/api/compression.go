package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// compressResponses negotiates a response encoding from Accept-Encoding.
// Brotli wins when the client offers it, then gzip. Dashboards poll the
// ranking endpoints and the JSON bodies compress well.
func compressResponses(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" {
			next.ServeHTTP(w, r)
			return
		}

		var compressor io.WriteCloser
		switch encoding {
		case "br":
			compressor = brotli.NewWriter(w)
		case "gzip":
			compressor = gzip.NewWriter(w)
		}
		defer compressor.Close()

		w.Header().Set("Content-Encoding", encoding)
		w.Header().Add("Vary", "Accept-Encoding")

		next.ServeHTTP(&compressedWriter{ResponseWriter: w, w: compressor}, r)
	})
}

func negotiateEncoding(acceptEncoding string) string {
	supportsGzip := false
	for _, part := range strings.Split(acceptEncoding, ",") {
		enc := strings.TrimSpace(part)
		if i := strings.Index(enc, ";"); i >= 0 {
			enc = strings.TrimSpace(enc[:i])
		}
		switch enc {
		case "br":
			return "br"
		case "gzip":
			supportsGzip = true
		}
	}
	if supportsGzip {
		return "gzip"
	}
	return ""
}

type compressedWriter struct {
	http.ResponseWriter
	w io.Writer
}

func (cw *compressedWriter) Write(b []byte) (int, error) {
	return cw.w.Write(b)
}

// WriteHeader drops Content-Length set by handlers since the compressed
// size differs.
func (cw *compressedWriter) WriteHeader(status int) {
	cw.Header().Del("Content-Length")
	cw.ResponseWriter.WriteHeader(status)
}
