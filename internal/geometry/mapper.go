package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrNotReady is returned when the image's natural size is not known yet.
	ErrNotReady = errors.New("image not decoded")

	// ErrNoLayout is returned when the image has no rendered size.
	ErrNoLayout = errors.New("image has no rendered size")
)

// Box is a bounding box in native image space, ordered the way the
// recognition service reports it: top, right, bottom, left.
type Box struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Width returns the horizontal extent of the box in native pixels.
func (b Box) Width() float64 { return b.Right - b.Left }

// Height returns the vertical extent of the box in native pixels.
func (b Box) Height() float64 { return b.Bottom - b.Top }

// Valid reports whether the box satisfies top < bottom and left < right.
func (b Box) Valid() bool {
	return b.Top < b.Bottom && b.Left < b.Right
}

// DisplayContext describes the image currently shown: its natural (decoded)
// size and the size it is rendered at on screen.
//
// A DisplayContext is rebuilt for every draw pass and never kept afterwards.
type DisplayContext struct {
	NaturalWidth   float64 `json:"natural_width"`
	NaturalHeight  float64 `json:"natural_height"`
	RenderedWidth  float64 `json:"rendered_width"`
	RenderedHeight float64 `json:"rendered_height"`
}

// ContextFor builds a DisplayContext from a decoded image size and the
// integer rendered size reported by the host.
func ContextFor(natural image.Point, renderedWidth, renderedHeight int) DisplayContext {
	return DisplayContext{
		NaturalWidth:   float64(natural.X),
		NaturalHeight:  float64(natural.Y),
		RenderedWidth:  float64(renderedWidth),
		RenderedHeight: float64(renderedHeight),
	}
}

// Rect is a rectangle in display space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rectangle has no drawable area: zero, negative
// or non-finite width or height, or a non-finite origin.
func (r Rect) Empty() bool {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return r.Width <= 0 || r.Height <= 0
}

// Bottom returns the Y coordinate of the rectangle's bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Right returns the X coordinate of the rectangle's right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bounds returns the smallest integer rectangle covering r.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.Right())),
		int(math.Ceil(r.Bottom())),
	)
}

// Scale returns the independent horizontal and vertical scale factors that
// take native coordinates to display coordinates.
func Scale(ctx DisplayContext) (scaleX, scaleY float64, err error) {
	if !(ctx.NaturalWidth > 0) || !(ctx.NaturalHeight > 0) {
		return 0, 0, fmt.Errorf("natural size %gx%g: %w", ctx.NaturalWidth, ctx.NaturalHeight, ErrNotReady)
	}
	if !(ctx.RenderedWidth > 0) || !(ctx.RenderedHeight > 0) {
		return 0, 0, fmt.Errorf("rendered size %gx%g: %w", ctx.RenderedWidth, ctx.RenderedHeight, ErrNoLayout)
	}
	return ctx.RenderedWidth / ctx.NaturalWidth, ctx.RenderedHeight / ctx.NaturalHeight, nil
}

// MapBox converts a native-space box into a display-space rectangle.
//
// The result is
//
//	{X: left*scaleX, Y: top*scaleY, Width: (right-left)*scaleX, Height: (bottom-top)*scaleY}
//
// MapBox does not validate the box itself; a box with inverted edges maps to a
// rectangle with negative extent, which Rect.Empty reports.
func MapBox(box Box, ctx DisplayContext) (Rect, error) {
	scaleX, scaleY, err := Scale(ctx)
	if err != nil {
		return Rect{}, err
	}
	return Rect{
		X:      box.Left * scaleX,
		Y:      box.Top * scaleY,
		Width:  (box.Right - box.Left) * scaleX,
		Height: (box.Bottom - box.Top) * scaleY,
	}, nil
}
