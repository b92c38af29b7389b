package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"sync"
	"testing"
)

// createInMemoryImage creates a solid color image.
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// encodePNG returns the PNG bytes of a solid color image.
func encodePNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, createInMemoryImage(width, height, c)); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// createTestImage creates a simple test image file and returns its path.
// The caller is responsible for removing the file.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if _, err := tmpFile.Write(encodePNG(t, width, height, c)); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to write image: %v", err)
	}

	return tmpFile.Name()
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.entries == nil {
		t.Fatal("NewImageCache did not initialize entries map")
	}
}

func TestImageCache_DecodeDataURI(t *testing.T) {
	cache := NewImageCache()
	src := dataURI("image/png", encodePNG(t, 120, 80, color.RGBA{255, 0, 0, 255}))

	img1, err := cache.Decode(context.Background(), src)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	bounds := img1.Bounds()
	if bounds.Dx() != 120 || bounds.Dy() != 80 {
		t.Errorf("unexpected dimensions: got %dx%d, want 120x80", bounds.Dx(), bounds.Dy())
	}

	// Second decode should return cached image
	img2, err := cache.Decode(context.Background(), src)
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Decode did not return cached image")
	}
}

func TestImageCache_DecodeJPEGDataURI(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createInMemoryImage(64, 48, color.RGBA{0, 0, 255, 255}), nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}

	cache := NewImageCache()
	info, err := cache.Info(context.Background(), dataURI("image/jpeg", buf.Bytes()))
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Format != "jpeg" {
		t.Errorf("Format: got %s, want jpeg", info.Format)
	}
	if info.Source != SourceDataURI {
		t.Errorf("Source: got %s, want %s", info.Source, SourceDataURI)
	}
	if info.Width != 64 || info.Height != 48 {
		t.Errorf("dimensions: got %dx%d, want 64x48", info.Width, info.Height)
	}
}

func TestImageCache_DecodeBase64(t *testing.T) {
	cache := NewImageCache()
	src := base64.StdEncoding.EncodeToString(encodePNG(t, 30, 20, color.White))

	info, err := cache.Info(context.Background(), src)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Source != SourceBase64 {
		t.Errorf("Source: got %s, want %s", info.Source, SourceBase64)
	}
	if info.Width != 30 || info.Height != 20 {
		t.Errorf("dimensions: got %dx%d, want 30x20", info.Width, info.Height)
	}
}

func TestImageCache_DecodeFile(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 200, 150, color.RGBA{255, 128, 64, 255})
	defer os.Remove(imgPath)

	info, err := cache.Info(context.Background(), imgPath)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	if info.Width != 200 {
		t.Errorf("Width: got %d, want 200", info.Width)
	}
	if info.Height != 150 {
		t.Errorf("Height: got %d, want 150", info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.Source != SourceFile {
		t.Errorf("Source: got %s, want %s", info.Source, SourceFile)
	}
	if info.SizeBytes <= 0 {
		t.Error("SizeBytes should be positive")
	}
}

func TestImageCache_DecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"data uri without comma", "data:image/png;base64"},
		{"data uri not base64", "data:text/plain,hello"},
		{"data uri empty payload", "data:image/png;base64,"},
		{"data uri bad payload", "data:image/png;base64,!!!"},
		{"not an image", dataURI("image/png", []byte("not an image"))},
		{"missing file", "/nonexistent/path/to/image.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewImageCache()
			if _, err := cache.Decode(context.Background(), tt.src); err == nil {
				t.Errorf("Decode(%q) should fail", tt.name)
			}
			if cache.Len() != 0 {
				t.Error("failed decode should not be cached")
			}
		})
	}
}

func TestImageCache_DecodeEmptyIsErrEmptySource(t *testing.T) {
	_, err := NewImageCache().Decode(context.Background(), "")
	if !errors.Is(err, ErrEmptySource) {
		t.Errorf("got %v, want ErrEmptySource", err)
	}
}

func TestImageCache_DecodeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := dataURI("image/png", encodePNG(t, 10, 10, color.Black))
	if _, err := NewImageCache().Decode(ctx, src); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestImageCache_Clear(t *testing.T) {
	cache := NewImageCache()
	src := dataURI("image/png", encodePNG(t, 50, 50, color.RGBA{0, 255, 0, 255}))

	if _, err := cache.Decode(context.Background(), src); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Clear did not empty cache: %d images remain", cache.Len())
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	src := dataURI("image/png", encodePNG(t, 50, 50, color.RGBA{0, 0, 255, 255}))

	if _, err := cache.Decode(context.Background(), src); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	cache.Evict(src)

	cache.mu.RLock()
	_, exists := cache.entries[src]
	cache.mu.RUnlock()

	if exists {
		t.Error("Evict did not remove image from cache")
	}

	// Should not panic
	cache.Evict("never-loaded")
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	src := dataURI("image/png", encodePNG(t, 50, 50, color.RGBA{128, 128, 128, 255}))

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Decode(context.Background(), src); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Decode error: %v", err)
	}
}
