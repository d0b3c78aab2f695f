// Package middleware holds transport-level gin middleware.
package middleware

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression.
type CompressionConfig struct {
	MinSize      int      // responses smaller than this are sent as is
	Level        int      // gzip level, 1 to 9
	ContentTypes []string // compressible content type prefixes
}

// DefaultCompressionConfig compresses JSON and text bodies of 1KB or more.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
		},
	}
}

// Compression gzips response bodies for clients that accept it.
type Compression struct {
	config CompressionConfig
	pool   sync.Pool

	total      atomic.Int64
	compressed atomic.Int64
	bytesIn    atomic.Int64
}

// NewCompression creates the middleware.
func NewCompression(config CompressionConfig) *Compression {
	if config.Level < gzip.HuffmanOnly || config.Level > gzip.BestCompression {
		config.Level = gzip.DefaultCompression
	}
	c := &Compression{config: config}
	c.pool.New = func() any {
		gz, _ := gzip.NewWriterLevel(nil, config.Level)
		return gz
	}
	return c
}

// Handler returns the gin middleware.
func (cm *Compression) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cm.total.Add(1)
		if c.Request.Method == http.MethodHead || !acceptsGzip(c.Request) {
			c.Next()
			return
		}

		w := &gzipWriter{ResponseWriter: c.Writer, owner: cm}
		c.Writer = w
		defer func() {
			w.finish()
			c.Writer = w.ResponseWriter
		}()

		c.Next()
	}
}

// Stats reports how many responses were compressed.
func (cm *Compression) Stats() map[string]any {
	return map[string]any{
		"total_requests":      cm.total.Load(),
		"compressed_requests": cm.compressed.Load(),
		"compressed_bytes_in": cm.bytesIn.Load(),
	}
}

func (cm *Compression) compressible(h http.Header) bool {
	if h.Get("Content-Encoding") != "" {
		return false
	}
	ct := h.Get("Content-Type")
	for _, prefix := range cm.config.ContentTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if enc == "gzip" {
			return true
		}
	}
	return false
}

// gzipWriter buffers the body until it knows whether compression pays off.
type gzipWriter struct {
	gin.ResponseWriter
	owner *Compression

	buf bytes.Buffer
	gz  *gzip.Writer
	raw bool
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	switch {
	case w.gz != nil:
		w.owner.bytesIn.Add(int64(len(data)))
		return w.gz.Write(data)
	case w.raw:
		return w.ResponseWriter.Write(data)
	}

	w.buf.Write(data)
	if w.buf.Len() < w.owner.config.MinSize {
		return len(data), nil
	}
	if err := w.decide(); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipWriter) Written() bool {
	return w.buf.Len() > 0 || w.gz != nil || w.ResponseWriter.Written()
}

func (w *gzipWriter) Flush() {
	if w.gz == nil && !w.raw {
		_ = w.decide()
	}
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

// decide starts the gzip stream or falls back to the raw body, then drains the buffer.
func (w *gzipWriter) decide() error {
	h := w.Header()
	if w.buf.Len() >= w.owner.config.MinSize && w.owner.compressible(h) {
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")

		w.gz = w.owner.pool.Get().(*gzip.Writer)
		w.gz.Reset(w.ResponseWriter)
		w.owner.compressed.Add(1)
		w.owner.bytesIn.Add(int64(w.buf.Len()))
		_, err := w.gz.Write(w.buf.Bytes())
		w.buf.Reset()
		return err
	}

	w.raw = true
	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

func (w *gzipWriter) finish() {
	if w.gz == nil && !w.raw {
		_ = w.decide()
	}
	if w.gz != nil {
		_ = w.gz.Close()
		w.gz.Reset(nil)
		w.owner.pool.Put(w.gz)
		w.gz = nil
	}
}
