package overlay

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/detection"
	"github.com/ironsheep/face-overlay/internal/geometry"
	"github.com/ironsheep/face-overlay/internal/imaging"
)

// Decoder turns an opaque image source into a decoded image.
type Decoder interface {
	Decode(ctx context.Context, src string) (image.Image, error)
}

// State is the renderer's position in its draw cycle.
type State int

const (
	// Idle: no image is set and nothing is shown.
	Idle State = iota
	// AwaitingDecode: an image is set but its natural size is not known yet.
	AwaitingDecode
	// Ready: the image is decoded; the next trigger draws.
	Ready
	// Drawing: annotations are being painted.
	Drawing
	// Drawn: the surface reflects the current image and results.
	Drawn
)

var stateNames = map[State]string{
	Idle:           "idle",
	AwaitingDecode: "awaiting_decode",
	Ready:          "ready",
	Drawing:        "drawing",
	Drawn:          "drawn",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for skipped records and ignored triggers.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Renderer) {
		r.log = log
	}
}

// WithDecodeHook sets fn to run when an image finishes decoding, before it is
// first drawn. Hosts use it to lay the image out for its natural size. fn
// runs on the decode goroutine without the renderer lock held, so it may
// resize the host; the renderer ignores layout changes until fn returns.
func WithDecodeHook(fn func(generation uint64, natural image.Point)) Option {
	return func(r *Renderer) {
		r.onDecoded = fn
	}
}

// WithStyle overrides DefaultStyle.
func WithStyle(s Style) Option {
	return func(r *Renderer) {
		r.style = s
	}
}

// Renderer keeps an annotation surface in sync with the current image,
// result set and host layout.
type Renderer struct {
	host    Host
	decoder Decoder
	log     logrus.FieldLogger
	style   Style
	painter *painter

	onDecoded func(generation uint64, natural image.Point)

	mu         sync.Mutex
	state      State
	generation uint64
	imageID    string
	source     image.Image
	natural    image.Point
	results    *detection.ResultSet
	surface    *image.RGBA
	decoded    chan struct{}
	decodeErr  error
	outcome    *Outcome
	cycles     uint64
	stale      uint64
	deferred   uint64
}

// New creates an idle renderer drawing for host and decoding with decoder.
func New(host Host, decoder Decoder, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		host:    host,
		decoder: decoder,
		log:     logrus.StandardLogger(),
		style:   DefaultStyle(),
		state:   Idle,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.style.Validate(); err != nil {
		return nil, fmt.Errorf("invalid style: %w", err)
	}
	p, err := newPainter(r.style)
	if err != nil {
		return nil, err
	}
	r.painter = p
	return r, nil
}

// Style returns the style annotations are drawn with.
func (r *Renderer) Style() Style {
	return r.style
}

// SetImage replaces the current image and starts decoding src in the
// background. Results held for the previous image are dropped. It returns the
// new image generation, which SetResultsFor accepts.
//
// An empty src clears the renderer.
func (r *Renderer) SetImage(ctx context.Context, src string) uint64 {
	if src == "" {
		return r.Clear()
	}

	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.imageID = uuid.NewString()
	r.state = AwaitingDecode
	r.source = nil
	r.natural = image.Point{}
	r.results = nil
	r.surface = nil
	r.outcome = nil
	r.decodeErr = nil
	done := make(chan struct{})
	r.decoded = done
	log := r.log.WithFields(logrus.Fields{"generation": gen, "image_id": r.imageID})
	r.mu.Unlock()

	log.Debug("image set, decoding")

	go func() {
		defer close(done)
		img, err := r.decoder.Decode(ctx, src)
		r.complete(gen, img, err)
	}()

	return gen
}

// complete handles a finished decode. Decodes for anything but the current
// generation are ignored. The renderer stays in AwaitingDecode while the
// decode hook runs, so nothing is drawn against the previous image's layout.
func (r *Renderer) complete(gen uint64, img image.Image, err error) {
	r.mu.Lock()
	if r.staleLocked(gen) {
		r.mu.Unlock()
		return
	}
	if err == nil && (img == nil || img.Bounds().Empty()) {
		err = fmt.Errorf("decoded image has no pixels: %w", geometry.ErrNotReady)
	}
	if err != nil {
		r.state = Idle
		r.decodeErr = err
		r.log.WithFields(logrus.Fields{"generation": gen, "error": err}).Warn("image decode failed")
		r.mu.Unlock()
		return
	}
	hook := r.onDecoded
	r.mu.Unlock()

	if hook != nil {
		hook(gen, img.Bounds().Size())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleLocked(gen) {
		return
	}
	r.source = img
	r.natural = img.Bounds().Size()
	r.state = Ready
	r.redrawLocked("decoded")
}

// staleLocked counts and reports a decode for a superseded generation. The
// caller holds r.mu.
func (r *Renderer) staleLocked(gen uint64) bool {
	if gen == r.generation {
		return false
	}
	r.stale++
	r.log.WithFields(logrus.Fields{
		"generation": gen,
		"current":    r.generation,
	}).Debug(ErrStaleDecode.Error())
	return true
}

// Await blocks until the decode started by the latest SetImage has finished
// or ctx is done. It returns immediately when no decode was started.
func (r *Renderer) Await(ctx context.Context) error {
	r.mu.Lock()
	done := r.decoded
	r.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetResults installs rs for the current image and repaints if the image is
// decoded. While decoding, rs is held and painted once decode completes. With
// no image set, rs is dropped and false is returned. A nil rs is an empty set.
func (r *Renderer) SetResults(rs *detection.ResultSet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setResultsLocked(rs)
}

// SetResultsFor is SetResults guarded by an image generation: rs is applied
// only if generation is still the current image.
func (r *Renderer) SetResultsFor(generation uint64, rs *detection.ResultSet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if generation != r.generation {
		r.log.WithFields(logrus.Fields{
			"generation": generation,
			"current":    r.generation,
		}).Debug("dropping results for a previous image")
		return false
	}
	return r.setResultsLocked(rs)
}

func (r *Renderer) setResultsLocked(rs *detection.ResultSet) bool {
	switch r.state {
	case Idle:
		r.log.Debug("dropping results, no image set")
		return false
	case AwaitingDecode:
		r.results = rs
		return true
	default:
		r.results = rs
		r.redrawLocked("results")
		return true
	}
}

// Resize tells the renderer the rendered size of the image may have changed.
// A decoded image is redrawn in full.
func (r *Renderer) Resize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Ready || r.state == Drawn {
		r.state = Ready
		r.redrawLocked("resize")
	}
}

// Redraw repaints the current image and results and returns the latest
// outcome, if any draw has completed for this image.
func (r *Renderer) Redraw() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Ready || r.state == Drawn {
		r.redrawLocked("explicit")
	}
	if r.outcome == nil {
		return Outcome{}, false
	}
	return *r.outcome, true
}

// Clear drops the image and results and returns to Idle. Pending decodes
// become stale. It returns the new generation.
func (r *Renderer) Clear() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	r.state = Idle
	r.imageID = ""
	r.source = nil
	r.natural = image.Point{}
	r.results = nil
	r.surface = nil
	r.outcome = nil
	r.decodeErr = nil
	r.decoded = nil
	return r.generation
}

// redrawLocked runs one full draw cycle. The caller holds r.mu.
func (r *Renderer) redrawLocked(trigger string) {
	log := r.log.WithFields(logrus.Fields{"generation": r.generation, "trigger": trigger})

	w, h, ok := r.host.RenderedSize()
	if !ok || w <= 0 || h <= 0 {
		r.deferred++
		log.Debug(ErrSurfaceUnavailable.Error())
		return
	}

	ctx := geometry.ContextFor(r.natural, w, h)
	if _, _, err := geometry.Scale(ctx); err != nil {
		r.deferred++
		log.WithField("error", err).Debug("draw deferred")
		return
	}

	if r.surface == nil || r.surface.Bounds().Dx() != w || r.surface.Bounds().Dy() != h {
		r.surface = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	r.state = Drawing
	out := r.painter.paint(r.surface, ctx, r.results, log)
	r.cycles++
	out.Cycle = r.cycles
	out.Generation = r.generation
	r.outcome = &out
	r.state = Drawn

	log.WithFields(logrus.Fields{
		"drawn":   out.Drawn,
		"skipped": out.Skipped,
		"width":   w,
		"height":  h,
	}).Debug("overlay drawn")
}

// Snapshot returns a copy of the annotation surface. ok is false unless the
// renderer is in the Drawn state.
func (r *Renderer) Snapshot() (img *image.RGBA, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Drawn || r.surface == nil {
		return nil, false
	}
	cp := image.NewRGBA(r.surface.Bounds())
	draw.Draw(cp, cp.Bounds(), r.surface, r.surface.Bounds().Min, draw.Src)
	return cp, true
}

// Composite returns the image scaled to its rendered size with the
// annotation surface blended on top.
func (r *Renderer) Composite() (image.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Drawn || r.surface == nil || r.source == nil {
		return nil, false
	}
	return imaging.Composite(r.source, r.surface), true
}

// Current returns the decoded image together with the results held for it,
// read under one lock.
func (r *Renderer) Current() (image.Image, *detection.ResultSet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.source == nil {
		return nil, nil, false
	}
	return r.source, r.results, true
}

// Results returns the result set held for the current image.
func (r *Renderer) Results() *detection.ResultSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}

// Status is a point-in-time view of the renderer.
type Status struct {
	State       State    `json:"state"`
	Generation  uint64   `json:"generation"`
	ImageID     string   `json:"image_id,omitempty"`
	Natural     Size     `json:"natural"`
	Rendered    Size     `json:"rendered"`
	Records     int      `json:"records"`
	Cycles      uint64   `json:"cycles"`
	Deferred    uint64   `json:"deferred"`
	Stale       uint64   `json:"stale_decodes"`
	DecodeError string   `json:"decode_error,omitempty"`
	Outcome     *Outcome `json:"last_outcome,omitempty"`
}

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Status reports the renderer's current state.
func (r *Renderer) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Status{
		State:      r.state,
		Generation: r.generation,
		ImageID:    r.imageID,
		Natural:    Size{Width: r.natural.X, Height: r.natural.Y},
		Records:    r.results.Len(),
		Cycles:     r.cycles,
		Deferred:   r.deferred,
		Stale:      r.stale,
	}
	if r.surface != nil {
		s.Rendered = Size{Width: r.surface.Bounds().Dx(), Height: r.surface.Bounds().Dy()}
	}
	if r.decodeErr != nil {
		s.DecodeError = r.decodeErr.Error()
	}
	if r.outcome != nil {
		out := *r.outcome
		s.Outcome = &out
	}
	return s
}
