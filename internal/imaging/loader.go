package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrEmptySource is returned when an image source carries no data.
var ErrEmptySource = errors.New("empty image source")

// ImageCache decodes image sources and caches the decoded images.
//
// A source is the opaque reference the upload and capture flows hand over:
//   - a data URI ("data:image/jpeg;base64,...")
//   - a bare base64 payload
//   - a path to an image file
//
// Decoded images are keyed by the exact source string, so decoding the same
// data URI twice costs one decode.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear(). Data URIs can be large; long-running hosts should evict sources
// they have replaced.
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	img  image.Image
	info *ImageInfo
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		entries: make(map[string]*cacheEntry),
	}
}

// Decode returns the decoded image for src, decoding it on first use.
//
// EXIF orientation is applied, so the natural size matches what a browser
// reports for the same photo. ctx is checked before the read and before the
// decode; decoding itself is not interruptible.
func (c *ImageCache) Decode(ctx context.Context, src string) (image.Image, error) {
	e, err := c.load(ctx, src)
	if err != nil {
		return nil, err
	}
	return e.img, nil
}

// Info returns metadata for src, decoding it on first use.
func (c *ImageCache) Info(ctx context.Context, src string) (*ImageInfo, error) {
	e, err := c.load(ctx, src)
	if err != nil {
		return nil, err
	}
	info := *e.info
	return &info, nil
}

func (c *ImageCache) load(ctx context.Context, src string) (*cacheEntry, error) {
	c.mu.RLock()
	if e, ok := c.entries[src]; ok {
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, kind, err := readSource(src)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	e := &cacheEntry{img: img, info: describe(img, format, kind, int64(len(data)))}

	c.mu.Lock()
	c.entries[src] = e
	c.mu.Unlock()

	return e, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Evict removes a specific source from the cache.
//
// If the source is not in the cache, this method does nothing.
func (c *ImageCache) Evict(src string) {
	c.mu.Lock()
	delete(c.entries, src)
	c.mu.Unlock()
}

// Len returns the number of cached sources.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Source kinds reported in ImageInfo.
const (
	SourceDataURI = "data_uri"
	SourceBase64  = "base64"
	SourceFile    = "file"
)

// readSource returns the encoded bytes behind src and what kind of source it was.
func readSource(src string) ([]byte, string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, "", ErrEmptySource
	}

	if strings.HasPrefix(src, "data:") {
		data, err := decodeDataURI(src)
		return data, SourceDataURI, err
	}

	if info, err := os.Stat(src); err == nil && !info.IsDir() {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open image: %w", err)
		}
		return data, SourceFile, nil
	}

	data, err := base64.StdEncoding.DecodeString(src)
	if err != nil {
		return nil, "", fmt.Errorf("image source is neither a data URI, a file nor base64: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptySource
	}
	return data, SourceBase64, nil
}

// decodeDataURI extracts the payload of a base64 data URI such as
// "data:image/png;base64,iVBORw0...".
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URI: missing ','")
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding %q: only base64 is accepted", meta)
	}
	if payload == "" {
		return nil, ErrEmptySource
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data URI payload: %w", err)
	}
	return data, nil
}

// ImageInfo contains metadata about a decoded image source.
type ImageInfo struct {
	// Width is the natural image width in pixels, after EXIF orientation.
	Width int `json:"width"`

	// Height is the natural image height in pixels, after EXIF orientation.
	Height int `json:"height"`

	// Format is the encoded format as reported by the decoder: "png", "jpeg", "gif", ...
	Format string `json:"format"`

	// Source is how the image was supplied: "data_uri", "base64" or "file".
	Source string `json:"source"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image has an alpha (transparency) channel.
	HasAlpha bool `json:"has_alpha"`

	// SizeBytes is the size of the encoded image in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// describe builds ImageInfo for a decoded image.
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func describe(img image.Image, format, kind string, size int64) *ImageInfo {
	hasAlpha := false
	colorDepth := "8-bit"
	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Format:     format,
		Source:     kind,
		ColorDepth: colorDepth,
		HasAlpha:   hasAlpha,
		SizeBytes:  size,
	}
}
