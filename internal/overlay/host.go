package overlay

import (
	"image"
	"math"
	"sync"
)

// Host reports the size the image is currently rendered at.
//
// ok is false while the host element is not mounted. The renderer reads the
// size at the start of every draw cycle and never caches it.
type Host interface {
	RenderedSize() (width, height int, ok bool)
}

// Viewport is a Host backed by explicitly reported layout.
//
// Listeners registered with OnChange run after every Mount, Resize or
// Unmount that changes the layout, outside the viewport's lock.
type Viewport struct {
	mu        sync.RWMutex
	width     int
	height    int
	mounted   bool
	listeners []func()
}

// NewViewport returns an unmounted viewport.
func NewViewport() *Viewport {
	return &Viewport{}
}

// RenderedSize implements Host.
func (v *Viewport) RenderedSize() (int, int, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.mounted || v.width <= 0 || v.height <= 0 {
		return 0, 0, false
	}
	return v.width, v.height, true
}

// Mounted reports whether the viewport has been mounted.
func (v *Viewport) Mounted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mounted
}

// Mount marks the viewport as attached with the given rendered size.
func (v *Viewport) Mount(width, height int) {
	v.update(func() bool {
		changed := !v.mounted || v.width != width || v.height != height
		v.mounted, v.width, v.height = true, width, height
		return changed
	})
}

// Resize changes the rendered size. It mounts the viewport if needed.
func (v *Viewport) Resize(width, height int) {
	v.Mount(width, height)
}

// Unmount detaches the viewport. The size is forgotten.
func (v *Viewport) Unmount() {
	v.update(func() bool {
		changed := v.mounted
		v.mounted, v.width, v.height = false, 0, 0
		return changed
	})
}

// OnChange registers fn to run after each layout change.
func (v *Viewport) OnChange(fn func()) {
	v.mu.Lock()
	v.listeners = append(v.listeners, fn)
	v.mu.Unlock()
}

func (v *Viewport) update(apply func() bool) {
	v.mu.Lock()
	changed := apply()
	listeners := append([]func(){}, v.listeners...)
	v.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn()
	}
}

// Fit returns the rendered size of an image of the given natural size shown
// inside a box at most maxWidth wide and maxHeight tall, preserving aspect
// ratio and never enlarging. A non-positive limit means unbounded on that axis.
func Fit(natural image.Point, maxWidth, maxHeight int) image.Point {
	if natural.X <= 0 || natural.Y <= 0 {
		return image.Point{}
	}
	scale := 1.0
	if maxWidth > 0 {
		scale = math.Min(scale, float64(maxWidth)/float64(natural.X))
	}
	if maxHeight > 0 {
		scale = math.Min(scale, float64(maxHeight)/float64(natural.Y))
	}
	w := int(math.Round(float64(natural.X) * scale))
	h := int(math.Round(float64(natural.Y) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Pt(w, h)
}
