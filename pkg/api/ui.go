package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"github.com/telekom/bulkmail/pkg/apiresponses"
)

// cacheControlWriter sets Cache-Control based on the request path before the
// first write.
type cacheControlWriter struct {
	http.ResponseWriter
	path        string
	wroteHeader bool
}

func (w *cacheControlWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if strings.HasSuffix(w.path, ".html") || w.path == "/" {
			w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// ServeUI serves the operator UI from dir. Unknown paths fall back to
// index.html except under /api/, which keep their JSON 404.
func ServeUI(urlPrefix, dir string) gin.HandlerFunc {
	directory := static.LocalFile(dir, true)
	fileserver := http.FileServer(directory)
	if urlPrefix != "" {
		fileserver = http.StripPrefix(urlPrefix, fileserver)
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || c.Request.Method != http.MethodGet {
			apiresponses.RespondNotFound(c, "Endpoint not found")
			return
		}
		if !directory.Exists(urlPrefix, path) {
			c.Request.URL.Path = "/"
			path = "/"
		}
		fileserver.ServeHTTP(&cacheControlWriter{ResponseWriter: c.Writer, path: path}, c.Request)
		c.Abort()
	}
}
