package overlay

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// fontCache hands out bold label faces by pixel size.
//
// Sizes are quantized to quarter pixels so that continuously varying box
// widths do not create an unbounded number of faces.
type fontCache struct {
	mu    sync.Mutex
	font  *opentype.Font
	faces map[float64]font.Face
}

func newFontCache() (*fontCache, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", err)
	}
	return &fontCache{
		font:  f,
		faces: make(map[float64]font.Face),
	}, nil
}

// face returns a face whose em size is size display pixels.
func (c *fontCache) face(size float64) (font.Face, error) {
	key := math.Round(size*4) / 4

	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.faces[key]; ok {
		return f, nil
	}

	// At 72 DPI one point is one pixel.
	f, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    key,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %gpx face: %w", key, err)
	}
	c.faces[key] = f
	return f, nil
}
