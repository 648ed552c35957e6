package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// pngHeader returns a PNG signature and IHDR chunk declaring w×h pixels
// with no image data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], w)
	binary.BigEndian.PutUint32(ihdr[8:], h)
	ihdr[12] = 8 // bit depth
	ihdr[13] = 6 // RGBA

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestSaveRejectsOversizedDimensions(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, 0)
	_, err := s.Save(context.Background(), "u1", Upload{Body: bytes.NewReader(pngHeader(30000, 30000))})
	if !errors.Is(err, ErrTooManyPixels) || !errors.Is(err, core.ErrUploadRejected) {
		t.Fatalf("expected ErrTooManyPixels, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected nothing written, found %d files", len(entries))
	}
}

func TestSaveAcceptsPNG(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := s.Save(context.Background(), "u1", Upload{Filename: "me.png", Body: bytes.NewReader(pngBytes(t, 10, 10))})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(ref, "uploads/u1-") || !strings.HasSuffix(ref, ".png") {
		t.Fatalf("unexpected ref %q", ref)
	}
	if _, err := os.Stat(filepath.Join(dir, strings.TrimPrefix(ref, "uploads/"))); err != nil {
		t.Fatalf("file not written: %v", err)
	}
}

func TestSaveDownscalesLargeImages(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, 0)
	ref, err := s.Save(context.Background(), "u1", Upload{Body: bytes.NewReader(pngBytes(t, 2048, 512))})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, strings.TrimPrefix(ref, "uploads/")))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 1024 || cfg.Height != 256 {
		t.Fatalf("expected 1024x256, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestSaveRejects(t *testing.T) {
	s, _ := NewStore(t.TempDir(), 64)
	cases := []struct {
		name string
		body []byte
		want error
	}{
		{"empty", nil, ErrEmptyFile},
		{"text", []byte("hello, this is not an image"), ErrUnsupportedType},
		{"gif", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"), ErrUnsupportedType},
		{"too large", bytes.Repeat([]byte{0xff}, 65), ErrFileTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Save(context.Background(), "u1", Upload{Body: bytes.NewReader(tc.body)})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, core.ErrUploadRejected) {
				t.Fatalf("expected upload rejected, got %v", err)
			}
		})
	}
}

func TestFit(t *testing.T) {
	cases := []struct{ w, h, ww, wh int }{
		{2048, 1024, 1024, 512},
		{1000, 3000, 341, 1024},
		{5000, 1, 1024, 1},
	}
	for _, tc := range cases {
		w, h := fit(tc.w, tc.h, 1024)
		if w != tc.ww || h != tc.wh {
			t.Fatalf("fit(%d,%d) = %d,%d want %d,%d", tc.w, tc.h, w, h, tc.ww, tc.wh)
		}
	}
}
