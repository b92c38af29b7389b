package overlay

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/detection"
	"github.com/ironsheep/face-overlay/internal/geometry"
)

// FontSize returns the label font size for a box of the given display width:
// width / FontDivisor, clamped to [FontMin, FontMax].
func FontSize(boxWidth float64, s Style) float64 {
	return math.Max(s.FontMin, math.Min(boxWidth/s.FontDivisor, s.FontMax))
}

// Tag is a placed label background.
type Tag struct {
	geometry.Rect

	// Below is true when the tag was moved under the box because it would
	// have been clipped by the top of the surface.
	Below bool `json:"below"`
}

// PlaceTag positions the label tag for a box.
//
// The tag is textWidth+2*padding wide and textHeight+2*padding tall and sits
// directly above the box's top-left corner. If its top would be above y=0 it
// is placed at the box's bottom edge instead. Horizontal overflow is left
// as is.
func PlaceTag(box geometry.Rect, textWidth, textHeight, padding float64) Tag {
	t := Tag{
		Rect: geometry.Rect{
			X:      box.X,
			Y:      box.Y - textHeight - padding*2,
			Width:  textWidth + padding*2,
			Height: textHeight + padding*2,
		},
	}
	if t.Y < 0 {
		t.Y = box.Bottom()
		t.Below = true
	}
	return t
}

// Annotation records what was painted for one detection.
type Annotation struct {
	Index int           `json:"index"`
	Text  string        `json:"text"`
	Color string        `json:"color"`
	Box   geometry.Rect `json:"box"`
	Tag   Tag           `json:"tag"`
	Font  float64       `json:"font_size"`
}

// Outcome describes one completed draw cycle.
type Outcome struct {
	// Cycle counts completed draws since the renderer was created.
	Cycle uint64 `json:"cycle"`

	// Generation is the image generation the cycle drew for.
	Generation uint64 `json:"generation"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Drawn   int  `json:"drawn"`
	Skipped int  `json:"skipped"`
	Empty   bool `json:"empty"`

	Annotations []Annotation `json:"annotations"`
}

// painter issues the draw commands for one cycle.
type painter struct {
	style Style
	fonts *fontCache
}

func newPainter(style Style) (*painter, error) {
	fonts, err := newFontCache()
	if err != nil {
		return nil, err
	}
	return &painter{style: style, fonts: fonts}, nil
}

// paint clears surface and draws every record of rs mapped through ctx.
func (p *painter) paint(surface *image.RGBA, ctx geometry.DisplayContext, rs *detection.ResultSet, log logrus.FieldLogger) Outcome {
	dc := gg.NewContextForRGBA(surface)
	dc.SetColor(color.Transparent)
	dc.Clear()

	out := Outcome{
		Width:       surface.Bounds().Dx(),
		Height:      surface.Bounds().Dy(),
		Empty:       rs.Empty(),
		Annotations: []Annotation{},
	}
	if rs.Empty() {
		return out
	}

	for i, rec := range rs.Records {
		rect, err := geometry.MapBox(rec.Box, ctx)
		if err == nil && rect.Empty() {
			err = ErrDegenerateBox
		}
		if err != nil {
			out.Skipped++
			log.WithFields(logrus.Fields{
				"index": i,
				"label": rec.Label,
				"box":   rec.Box,
				"rect":  rect,
				"error": err,
			}).Warn("skipping detection")
			continue
		}

		a, err := p.annotate(dc, i, rect, rec)
		if err != nil {
			out.Skipped++
			log.WithFields(logrus.Fields{"index": i, "error": err}).Warn("failed to draw detection")
			continue
		}
		out.Annotations = append(out.Annotations, a)
		out.Drawn++
	}
	return out
}

// annotate draws the outline, tag and label for one record.
func (p *painter) annotate(dc *gg.Context, index int, rect geometry.Rect, rec detection.Record) (Annotation, error) {
	s := p.style
	status := s.statusColor(rec.Recognized())

	dc.SetColor(status)
	dc.SetLineWidth(s.StrokeWidth)
	dc.DrawRectangle(rect.X, rect.Y, rect.Width, rect.Height)
	dc.Stroke()

	text := rec.Text()
	size := FontSize(rect.Width, s)
	face, err := p.fonts.face(size)
	if err != nil {
		return Annotation{}, err
	}
	dc.SetFontFace(face)
	textWidth, _ := dc.MeasureString(text)

	tag := PlaceTag(rect, textWidth, size, s.TagPadding)
	dc.DrawRectangle(tag.X, tag.Y, tag.Width, tag.Height)
	dc.Fill()

	// The text top sits at the padding line; DrawString takes a baseline.
	ascent := float64(face.Metrics().Ascent) / 64
	dc.SetColor(s.Text)
	dc.DrawString(text, tag.X+s.TagPadding, tag.Y+s.TagPadding+ascent)

	return Annotation{
		Index: index,
		Text:  text,
		Color: Hex(status),
		Box:   rect,
		Tag:   tag,
		Font:  size,
	}, nil
}
