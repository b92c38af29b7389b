package overlay

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Default palette: green for recognized faces, orange for unknown ones, white
// label text on both.
const (
	DefaultRecognizedHex = "#4caf50"
	DefaultUnknownHex    = "#ff9800"
	DefaultTextHex       = "#ffffff"
)

// Style controls how annotations look.
type Style struct {
	// StrokeWidth is the outline width in display pixels. It does not scale
	// with the box.
	StrokeWidth float64

	// FontMin and FontMax bound the label font size in display pixels.
	FontMin float64
	FontMax float64

	// FontDivisor sets the unclamped font size as box width / FontDivisor.
	FontDivisor float64

	// TagPadding is the space between the label text and the tag edge.
	TagPadding float64

	Recognized color.NRGBA
	Unknown    color.NRGBA
	Text       color.NRGBA
}

// DefaultStyle returns the standard annotation style.
func DefaultStyle() Style {
	s, _ := NewStyle(DefaultRecognizedHex, DefaultUnknownHex, DefaultTextHex)
	return s
}

// NewStyle builds the default geometry with a custom palette given as hex
// colors ("#rrggbb").
func NewStyle(recognizedHex, unknownHex, textHex string) (Style, error) {
	recognized, err := ParseColor(recognizedHex)
	if err != nil {
		return Style{}, fmt.Errorf("recognized color: %w", err)
	}
	unknown, err := ParseColor(unknownHex)
	if err != nil {
		return Style{}, fmt.Errorf("unknown color: %w", err)
	}
	text, err := ParseColor(textHex)
	if err != nil {
		return Style{}, fmt.Errorf("text color: %w", err)
	}
	return Style{
		StrokeWidth: 3,
		FontMin:     12,
		FontMax:     16,
		FontDivisor: 8,
		TagPadding:  4,
		Recognized:  recognized,
		Unknown:     unknown,
		Text:        text,
	}, nil
}

// Validate checks that the geometry of the style is drawable.
func (s Style) Validate() error {
	if s.StrokeWidth <= 0 {
		return fmt.Errorf("stroke width must be positive, got %g", s.StrokeWidth)
	}
	if s.FontMin <= 0 || s.FontMax < s.FontMin {
		return fmt.Errorf("font bounds must satisfy 0 < min <= max, got %g..%g", s.FontMin, s.FontMax)
	}
	if s.FontDivisor <= 0 {
		return fmt.Errorf("font divisor must be positive, got %g", s.FontDivisor)
	}
	if s.TagPadding < 0 {
		return fmt.Errorf("tag padding must not be negative, got %g", s.TagPadding)
	}
	return nil
}

// ParseColor parses a "#rrggbb" hex color into an opaque color.
func ParseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Hex formats an opaque color as "#rrggbb".
func Hex(c color.NRGBA) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

// statusColor is the only content-dependent choice the painter makes: it
// depends on whether the face was recognized, never on its confidence.
func (s Style) statusColor(recognized bool) color.NRGBA {
	if recognized {
		return s.Recognized
	}
	return s.Unknown
}

// LegendEntry describes one status color.
type LegendEntry struct {
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Legend returns the status color legend shown alongside the overlay.
func (s Style) Legend() []LegendEntry {
	return []LegendEntry{
		{Color: Hex(s.Recognized), Description: "Recognized faces"},
		{Color: Hex(s.Unknown), Description: "Unknown faces"},
	}
}
