package overlay

import "errors"

var (
	// ErrSurfaceUnavailable means the host has no mounted, laid out surface.
	ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

	// ErrDegenerateBox means a record mapped to an empty display rectangle.
	ErrDegenerateBox = errors.New("degenerate bounding box")

	// ErrStaleDecode means a decode finished for an image that is no longer current.
	ErrStaleDecode = errors.New("stale image decode")
)
