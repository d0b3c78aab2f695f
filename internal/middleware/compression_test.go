package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func compressionRouter() (*gin.Engine, *Compression) {
	cm := NewCompression(DefaultCompressionConfig())
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/big", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"payload": strings.Repeat("affinity ", 400)})
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/binary", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/octet-stream", make([]byte, 4096))
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, cm
}

func TestCompression(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		accept     string
		wantGzip   bool
		wantStatus int
	}{
		{name: "large json", path: "/big", accept: "gzip, deflate", wantGzip: true, wantStatus: http.StatusOK},
		{name: "client without gzip", path: "/big", accept: "", wantGzip: false, wantStatus: http.StatusOK},
		{name: "other encoding only", path: "/big", accept: "br", wantGzip: false, wantStatus: http.StatusOK},
		{name: "small json", path: "/small", accept: "gzip", wantGzip: false, wantStatus: http.StatusOK},
		{name: "binary", path: "/binary", accept: "gzip", wantGzip: false, wantStatus: http.StatusOK},
		{name: "no body", path: "/empty", accept: "gzip", wantGzip: false, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := compressionRouter()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantGzip {
				assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
				assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")
			} else {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
			}
		})
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	r, cm := compressionRouter()

	plain := httptest.NewRecorder()
	r.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/big", nil))

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Less(t, w.Body.Len(), plain.Body.Len())

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, plain.Body.String(), string(body))

	stats := cm.Stats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["compressed_requests"])
}

func TestCompressionSmallBodyIsIntact(t *testing.T) {
	r, _ := compressionRouter()
	req := httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}
