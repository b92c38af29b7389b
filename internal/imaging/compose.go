package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/anthonynsimon/bild/transform"
)

// EncodedImage is a PNG image returned to clients as base64.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as a base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Composite scales base to the size of layer and draws layer over it,
// producing the image as the user sees it with its annotations.
//
// layer is expected to be premultiplied (*image.RGBA from the renderer), so
// it is composited with draw.Over rather than a straight-alpha blend.
func Composite(base image.Image, layer image.Image) *image.RGBA {
	size := layer.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return image.NewRGBA(image.Rectangle{})
	}

	var scaled image.Image = base
	if base.Bounds().Size() != size {
		scaled = transform.Resize(base, size.X, size.Y, transform.Linear)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(dst, dst.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	draw.Draw(dst, dst.Bounds(), layer, layer.Bounds().Min, draw.Over)
	return dst
}
