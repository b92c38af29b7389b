package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestComposite_ScalesBaseToLayer(t *testing.T) {
	base := createInMemoryImage(200, 100, color.RGBA{0, 0, 255, 255})
	layer := image.NewRGBA(image.Rect(0, 0, 100, 50))

	out := Composite(base, layer)
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 50 {
		t.Fatalf("composite size: got %v, want 100x50", out.Bounds())
	}

	// Transparent layer leaves the base visible.
	r, g, b, _ := out.At(50, 25).RGBA()
	if !near(r>>8, 0) || !near(g>>8, 0) || !near(b>>8, 255) {
		t.Errorf("base pixel: got (%d,%d,%d), want (0,0,255)", r>>8, g>>8, b>>8)
	}
}

func TestComposite_OpaqueLayerWins(t *testing.T) {
	base := createInMemoryImage(40, 40, color.RGBA{0, 0, 255, 255})
	layer := image.NewRGBA(image.Rect(0, 0, 40, 40))
	layer.Set(10, 10, color.RGBA{76, 175, 80, 255})

	out := Composite(base, layer)

	r, g, b, _ := out.At(10, 10).RGBA()
	if r>>8 != 76 || g>>8 != 175 || b>>8 != 80 {
		t.Errorf("layer pixel: got (%d,%d,%d), want (76,175,80)", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = out.At(20, 20).RGBA()
	if r>>8 != 0 || g>>8 != 0 || b>>8 != 255 {
		t.Errorf("base pixel: got (%d,%d,%d), want (0,0,255)", r>>8, g>>8, b>>8)
	}
}

// near tolerates one unit of resampling error.
func near(got, want uint32) bool {
	return got+1 >= want && got <= want+1
}

func TestComposite_EmptyLayer(t *testing.T) {
	out := Composite(createInMemoryImage(10, 10, color.White), image.NewRGBA(image.Rectangle{}))
	if !out.Bounds().Empty() {
		t.Errorf("expected empty composite, got %v", out.Bounds())
	}
}

func TestEncodePNG(t *testing.T) {
	result, err := EncodePNG(createInMemoryImage(30, 20, color.White))
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	if result.Width != 30 || result.Height != 20 {
		t.Errorf("dimensions: got %dx%d, want 30x20", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}
}
