// Package media stores profile pictures on local disk.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"

	"fintrack/internal/core"
)

const (
	DefaultMaxBytes = 5 << 20
	// MaxDimension is the longest side kept; larger images are downscaled.
	MaxDimension = 1024
	// MaxPixels bounds the decoded size of an upload.
	MaxPixels = 40_000_000
	// URLPrefix is the path under which stored files are served.
	URLPrefix = "uploads"
)

var (
	ErrFileTooLarge    = fmt.Errorf("%w: file too large", core.ErrUploadRejected)
	ErrUnsupportedType = fmt.Errorf("%w: only .jpeg, .jpg and .png formats are allowed", core.ErrUploadRejected)
	ErrEmptyFile       = fmt.Errorf("%w: no file uploaded", core.ErrUploadRejected)
	ErrTooManyPixels   = fmt.Errorf("%w: image dimensions too large", core.ErrUploadRejected)
)

// Upload is a file received from a client. The declared name is used for
// logging only; the type is sniffed from the content.
type Upload struct {
	Filename string
	Body     io.Reader
}

type Store struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

// NewStore creates dir if needed.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

func (s *Store) Dir() string     { return s.dir }
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save validates and writes the upload, returning its public reference
// ("uploads/<file>").
func (s *Store) Save(ctx context.Context, userID string, up Upload) (string, error) {
	data, err := io.ReadAll(io.LimitReader(up.Body, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrFileTooLarge
	}

	var ext string
	switch http.DetectContentType(data) {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	default:
		return "", ErrUnsupportedType
	}

	out, err := downscale(data, ext)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%d%s", userID, s.now().UnixNano(), ext)
	if err := writeAtomic(filepath.Join(s.dir, name), out); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Profile picture stored",
		"user_id", userID,
		"file", name,
		"original_name", up.Filename,
		"bytes", len(out))
	return URLPrefix + "/" + name, nil
}

// downscale re-encodes images whose longest side exceeds MaxDimension and
// returns others untouched.
func downscale(data []byte, ext string) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, ErrTooManyPixels
	}
	if cfg.Width <= MaxDimension && cfg.Height <= MaxDimension {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	w, h := fit(cfg.Width, cfg.Height, MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch ext {
	case ".png":
		err = png.Encode(&buf, dst)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales w×h so the longer side equals limit, keeping the aspect ratio.
func fit(w, h, limit int) (int, int) {
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close upload: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}
