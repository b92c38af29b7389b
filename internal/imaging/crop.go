package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/face-overlay/internal/geometry"
)

// FaceCrop is a face cut out of the native image.
type FaceCrop struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Region Region `json:"region"`
	EncodedImage
}

// Region is an integer rectangle in native image space.
//
// (X1, Y1) is inclusive, (X2, Y2) is exclusive.
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// CropBox extracts the native-space box from img, clipped to the image
// bounds, optionally scaled.
func CropBox(img image.Image, box geometry.Box, scale float64) (image.Image, Region, error) {
	if !box.Valid() {
		return nil, Region{}, fmt.Errorf("invalid crop box: top must be < bottom, left must be < right")
	}

	bounds := img.Bounds()
	r := image.Rect(
		int(math.Floor(box.Left)),
		int(math.Floor(box.Top)),
		int(math.Ceil(box.Right)),
		int(math.Ceil(box.Bottom)),
	).Add(bounds.Min).Intersect(bounds)

	if r.Empty() {
		return nil, Region{}, fmt.Errorf("crop region (%g,%g)-(%g,%g) outside image bounds (%d,%d)-(%d,%d)",
			box.Left, box.Top, box.Right, box.Bottom, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}

	var cropped image.Image = imaging.Crop(img, r)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(r.Dx()) * scale)
		newHeight := int(float64(r.Dy()) * scale)
		if newWidth > 0 && newHeight > 0 {
			cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
		}
	}

	region := Region{
		X1: r.Min.X - bounds.Min.X,
		Y1: r.Min.Y - bounds.Min.Y,
		X2: r.Max.X - bounds.Min.X,
		Y2: r.Max.Y - bounds.Min.Y,
	}
	return cropped, region, nil
}

// CropFace extracts and encodes one labeled face.
func CropFace(img image.Image, index int, label string, box geometry.Box, scale float64) (*FaceCrop, error) {
	cropped, region, err := CropBox(img, box, scale)
	if err != nil {
		return nil, err
	}
	enc, err := EncodePNG(cropped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode face %d: %w", index, err)
	}
	return &FaceCrop{
		Index:        index,
		Label:        label,
		Region:       region,
		EncodedImage: *enc,
	}, nil
}
