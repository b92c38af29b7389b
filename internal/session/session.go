// Package session hosts one overlay renderer the way the recognition page
// hosts its image: it owns the image cache, the viewport the image is laid
// out in, and the renderer drawing over it.
//
// Both the MCP server and the HTTP API drive a Session; neither talks to the
// renderer directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/detection"
	"github.com/ironsheep/face-overlay/internal/geometry"
	"github.com/ironsheep/face-overlay/internal/imaging"
	"github.com/ironsheep/face-overlay/internal/overlay"
)

var (
	// ErrDecode means the image could not be decoded.
	ErrDecode = errors.New("image decode failed")

	// ErrSuperseded means another image was set while a load was waiting.
	ErrSuperseded = errors.New("image superseded by a newer one")

	// ErrNoImage means the operation needs a decoded image.
	ErrNoImage = errors.New("no image loaded")

	// ErrNothingDrawn means no draw cycle has completed for the current image.
	ErrNothingDrawn = errors.New("overlay not drawn yet")

	// ErrDecodePending means LoadImage stopped waiting before the decode
	// finished. The image is still current and is drawn once decoded.
	ErrDecodePending = errors.New("image decode still running")
)

// Render modes.
const (
	ModeOverlay   = "overlay"
	ModeComposite = "composite"
)

// Options configures a Session.
type Options struct {
	Style overlay.Style

	// MaxWidth and MaxHeight bound the rendered image when it is fitted to
	// its container. Zero means unbounded.
	MaxWidth  int
	MaxHeight int

	// DecodeTimeout bounds how long LoadImage waits for a decode.
	DecodeTimeout time.Duration

	Logger logrus.FieldLogger
}

// DefaultOptions mirrors the recognition page: images are shown at most
// 500px tall and never enlarged.
func DefaultOptions() Options {
	return Options{
		Style:         overlay.DefaultStyle(),
		MaxHeight:     500,
		DecodeTimeout: 10 * time.Second,
	}
}

// Session is safe for concurrent use.
type Session struct {
	log      logrus.FieldLogger
	cache    *imaging.ImageCache
	viewport *overlay.Viewport
	renderer *overlay.Renderer
	opts     Options

	// ctx scopes background decodes to the session, not to the request that
	// started them.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	src       string
	detached  bool
	container int
}

// New creates an empty session. Its view is laid out when the first image
// loads.
func New(opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.DecodeTimeout <= 0 {
		opts.DecodeTimeout = DefaultOptions().DecodeTimeout
	}
	if opts.Style == (overlay.Style{}) {
		opts.Style = overlay.DefaultStyle()
	}

	s := &Session{
		log:      opts.Logger.WithField("component", "session"),
		cache:    imaging.NewImageCache(),
		viewport: overlay.NewViewport(),
		opts:     opts,
	}

	renderer, err := overlay.New(s.viewport, s.cache,
		overlay.WithLogger(opts.Logger.WithField("component", "renderer")),
		overlay.WithStyle(opts.Style),
		overlay.WithDecodeHook(s.layoutDecoded),
	)
	if err != nil {
		return nil, err
	}
	s.renderer = renderer
	s.viewport.OnChange(renderer.Resize)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Close abandons pending decodes and drops cached images.
func (s *Session) Close() {
	s.cancel()
	s.renderer.Clear()
	s.cache.Clear()
}

// Loaded describes a decoded image.
type Loaded struct {
	Generation uint64             `json:"generation"`
	ImageID    string             `json:"image_id"`
	Info       *imaging.ImageInfo `json:"info"`
	Rendered   overlay.Size       `json:"rendered"`
	Pending    bool               `json:"pending,omitempty"`
}

// LoadImage sets src as the current image and waits for it to decode. The
// decode itself is not bound to ctx: if ctx ends or the decode timeout passes
// first, LoadImage returns the generation with ErrDecodePending and the image
// is laid out and drawn when ready.
//
// An empty src clears the view.
func (s *Session) LoadImage(ctx context.Context, src string) (*Loaded, error) {
	if src == "" {
		s.Clear()
		return &Loaded{Generation: s.renderer.Status().Generation}, nil
	}

	s.mu.Lock()
	prev := s.src
	s.src = src
	s.mu.Unlock()
	if prev != "" && prev != src {
		s.cache.Evict(prev)
	}

	gen := s.renderer.SetImage(s.ctx, src)

	wctx, cancel := context.WithTimeout(ctx, s.opts.DecodeTimeout)
	defer cancel()
	if err := s.renderer.Await(wctx); err != nil {
		st := s.renderer.Status()
		pending := &Loaded{Generation: gen, Pending: true}
		if st.Generation == gen {
			pending.ImageID = st.ImageID
		}
		return pending, fmt.Errorf("%w: %w", ErrDecodePending, err)
	}

	st := s.renderer.Status()
	if st.Generation != gen {
		return nil, ErrSuperseded
	}
	if st.DecodeError != "" {
		return nil, fmt.Errorf("%w: %s", ErrDecode, st.DecodeError)
	}

	info, err := s.cache.Info(ctx, src)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"generation": gen,
		"image_id":   st.ImageID,
		"width":      info.Width,
		"height":     info.Height,
		"source":     info.Source,
	}).Info("image loaded")

	w, h, _ := s.viewport.RenderedSize()
	return &Loaded{
		Generation: gen,
		ImageID:    st.ImageID,
		Info:       info,
		Rendered:   overlay.Size{Width: w, Height: h},
	}, nil
}

// fit lays the image out in its container unless the view is detached.
func (s *Session) fit(natural image.Point) {
	s.mu.Lock()
	detached := s.detached
	maxW := s.opts.MaxWidth
	if s.container > 0 && (maxW <= 0 || s.container < maxW) {
		maxW = s.container
	}
	s.mu.Unlock()

	if detached || natural.X <= 0 || natural.Y <= 0 {
		return
	}
	size := overlay.Fit(natural, maxW, s.opts.MaxHeight)
	s.viewport.Resize(size.X, size.Y)
}

// layoutDecoded fits a freshly decoded image before the renderer first draws
// it. Decodes superseded in the meantime are left alone.
func (s *Session) layoutDecoded(gen uint64, natural image.Point) {
	if s.renderer.Status().Generation != gen {
		return
	}
	s.fit(natural)
}

// FitContainer lays the current image out in a container of the given width,
// bounded by the configured maximum height. It attaches a detached view.
func (s *Session) FitContainer(width int) overlay.Size {
	s.mu.Lock()
	s.container = width
	s.detached = false
	s.mu.Unlock()

	st := s.renderer.Status()
	s.fit(image.Pt(st.Natural.Width, st.Natural.Height))
	w, h, _ := s.viewport.RenderedSize()
	return overlay.Size{Width: w, Height: h}
}

// SetRenderedSize reports the rendered size directly, as a browser host
// measuring the image element would.
func (s *Session) SetRenderedSize(width, height int) {
	s.mu.Lock()
	s.detached = false
	s.mu.Unlock()
	s.viewport.Resize(width, height)
}

// Unmount detaches the view. Draws are deferred until it is laid out again.
func (s *Session) Unmount() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
	s.viewport.Unmount()
}

// Clear drops the image and results.
func (s *Session) Clear() {
	s.mu.Lock()
	src := s.src
	s.src = ""
	s.mu.Unlock()

	s.renderer.Clear()
	if src != "" {
		s.cache.Evict(src)
	}
}

// SetResults installs rs. A non-zero generation applies rs only if that
// image is still current.
func (s *Session) SetResults(generation uint64, rs *detection.ResultSet) bool {
	if generation == 0 {
		return s.renderer.SetResults(rs)
	}
	return s.renderer.SetResultsFor(generation, rs)
}

// SetResultsJSON parses a recognition response body and installs it.
func (s *Session) SetResultsJSON(generation uint64, body []byte) (*detection.ResultSet, bool, error) {
	rs, err := detection.Parse(body)
	if err != nil {
		return nil, false, err
	}
	return rs, s.SetResults(generation, rs), nil
}

// Redraw forces a draw cycle and returns its outcome.
func (s *Session) Redraw() (overlay.Outcome, error) {
	out, ok := s.renderer.Redraw()
	if !ok {
		return overlay.Outcome{}, ErrNothingDrawn
	}
	return out, nil
}

// Rendered is an encoded draw result.
type Rendered struct {
	Mode string `json:"mode"`
	imaging.EncodedImage
	Outcome overlay.Outcome `json:"outcome"`
}

// Render encodes the annotation surface (ModeOverlay) or the image with
// annotations on top (ModeComposite).
func (s *Session) Render(mode string) (*Rendered, error) {
	if mode == "" {
		mode = ModeOverlay
	}

	var (
		img image.Image
		ok  bool
	)
	switch mode {
	case ModeOverlay:
		img, ok = s.renderer.Snapshot()
	case ModeComposite:
		img, ok = s.renderer.Composite()
	default:
		return nil, fmt.Errorf("unknown render mode %q (want %s or %s)", mode, ModeOverlay, ModeComposite)
	}
	if !ok {
		return nil, ErrNothingDrawn
	}

	enc, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	out := Rendered{Mode: mode, EncodedImage: *enc}
	if st := s.renderer.Status(); st.Outcome != nil {
		out.Outcome = *st.Outcome
	}
	return &out, nil
}

// FaceCrop is a face thumbnail for the results list.
type FaceCrop struct {
	*imaging.FaceCrop
	Confidence float64 `json:"confidence"`
	Level      string  `json:"level,omitempty"`
}

// FaceCrops cuts every detected face out of the native image. Faces that
// cannot be cropped are logged and left out.
func (s *Session) FaceCrops(scale float64) ([]FaceCrop, error) {
	img, rs, ok := s.renderer.Current()
	if !ok {
		return nil, ErrNoImage
	}
	if scale <= 0 {
		scale = 1.0
	}

	crops := make([]FaceCrop, 0, rs.Len())
	if rs == nil {
		return crops, nil
	}
	for i, rec := range rs.Records {
		fc, err := imaging.CropFace(img, i, rec.Label, rec.Box, scale)
		if err != nil {
			s.log.WithFields(logrus.Fields{"index": i, "error": err}).Warn("skipping face crop")
			continue
		}
		crop := FaceCrop{FaceCrop: fc}
		if rec.Recognized() {
			crop.Confidence = rec.Confidence
			crop.Level = detection.ConfidenceLevel(rec.Confidence)
		}
		crops = append(crops, crop)
	}
	return crops, nil
}

// DisplayContext returns the current natural and rendered sizes.
func (s *Session) DisplayContext() geometry.DisplayContext {
	st := s.renderer.Status()
	w, h, _ := s.viewport.RenderedSize()
	return geometry.ContextFor(image.Pt(st.Natural.Width, st.Natural.Height), w, h)
}

// MapBox maps a native box through the current display context.
func (s *Session) MapBox(box geometry.Box) (geometry.Rect, geometry.DisplayContext, error) {
	ctx := s.DisplayContext()
	r, err := geometry.MapBox(box, ctx)
	return r, ctx, err
}

// Status is the renderer status plus what the page shows around the image.
type Status struct {
	overlay.Status
	Mounted bool                  `json:"mounted"`
	Summary *detection.Summary    `json:"summary,omitempty"`
	Legend  []overlay.LegendEntry `json:"legend,omitempty"`
}

// Status reports the session state. The summary appears once results are
// set; the legend only when there is something annotated.
func (s *Session) Status() Status {
	st := Status{
		Status:  s.renderer.Status(),
		Mounted: s.viewport.Mounted(),
	}
	if rs := s.renderer.Results(); rs != nil {
		sum := rs.Summarize()
		st.Summary = &sum
		if !rs.Empty() {
			st.Legend = s.renderer.Style().Legend()
		}
	}
	return st
}
