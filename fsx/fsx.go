// Package fsx reads media files from the local disk or S3 so they can be
// uploaded through the gateway.
package fsx

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/Abraxas-365/wagate/errx"
)

// FileInfo represents information about a file
type FileInfo struct {
	Name        string            // Base name of the file
	Size        int64             // File size in bytes
	ModTime     time.Time         // Modification time
	ContentType string            // MIME type (when available)
	Metadata    map[string]string // Additional metadata
}

// FileSystem is the read side of a file store
type FileSystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ReadFileStream(ctx context.Context, path string) (io.ReadCloser, error)
	Stat(ctx context.Context, path string) (FileInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

var fsErrors = errx.NewRegistry("FSX")

var (
	ErrNotFound    = fsErrors.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "File not found")
	ErrTooLarge    = fsErrors.Register("TOO_LARGE", errx.TypeValidation, http.StatusRequestEntityTooLarge, "File exceeds the size limit")
	ErrInvalidPath = fsErrors.Register("INVALID_PATH", errx.TypeValidation, http.StatusBadRequest, "Invalid file location")
	ErrRead        = fsErrors.Register("READ_FAILED", errx.TypeSystem, http.StatusInternalServerError, "Reading file failed")
)

// Media is a file loaded for upload
type Media struct {
	FileInfo
	Data []byte
}

// Load reads a whole file, refusing anything larger than maxBytes (0 means
// no limit). The content type falls back to the extension, then to sniffing.
func Load(ctx context.Context, fsys FileSystem, p string, maxBytes int64) (*Media, error) {
	info, err := fsys.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && info.Size > maxBytes {
		return nil, fsErrors.New(ErrTooLarge).
			WithDetail("path", p).
			WithDetail("size", info.Size).
			WithDetail("limit", maxBytes)
	}

	data, err := fsys.ReadFile(ctx, p)
	if err != nil {
		return nil, err
	}

	if info.ContentType == "" || info.ContentType == "application/octet-stream" {
		info.ContentType = DetectContentType(info.Name, data)
	}
	return &Media{FileInfo: info, Data: data}, nil
}

// DetectContentType guesses a MIME type from the name, then the content
func DetectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// MediaType maps a MIME type to the gateway media kind
func MediaType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	default:
		return "document"
	}
}
