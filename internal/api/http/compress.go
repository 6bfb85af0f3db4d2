package http

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// minCompressSize is the smallest body worth compressing.
const minCompressSize = 512

// negotiateEncoding picks zstd or gzip from an Accept-Encoding header, or
// "" for identity.
func negotiateEncoding(header string) string {
	var gz, zs bool
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
				continue
			}
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "zstd":
			zs = true
		case "gzip", "*":
			gz = true
		}
	}
	switch {
	case zs:
		return "zstd"
	case gz:
		return "gzip"
	}
	return ""
}

// writeBody writes body with the best encoding the client accepts.
func writeBody(c *gin.Context, status int, contentType string, body []byte) {
	c.Header("Vary", "Accept-Encoding")
	encoding := ""
	if len(body) >= minCompressSize {
		encoding = negotiateEncoding(c.GetHeader("Accept-Encoding"))
	}
	if encoding == "" {
		c.Data(status, contentType, body)
		return
	}

	var buf bytes.Buffer
	if err := compress(&buf, encoding, body); err != nil {
		c.Data(status, contentType, body)
		return
	}
	c.Header("Content-Encoding", encoding)
	c.Data(status, contentType, buf.Bytes())
}

func compress(w io.Writer, encoding string, body []byte) error {
	var enc io.WriteCloser
	switch encoding {
	case "zstd":
		z, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return err
		}
		enc = z
	default:
		g, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			return err
		}
		enc = g
	}
	if _, err := enc.Write(body); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// notModified reports whether the request's If-None-Match matches etag.
func notModified(r *http.Request, etag string) bool {
	if etag == "" {
		return false
	}
	for _, candidate := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
