// Package geometry converts face boxes from native image space into display space.
//
// A detection box is always expressed in the pixel space of the original,
// undisplayed image. When that image is shown at a different size, every box
// must be scaled by the ratio between the rendered size and the natural size
// before it can be drawn on top of the image.
//
// # Coordinate System
//
// Both spaces use the standard image convention:
//   - Origin (0, 0) at the top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Display coordinates are float64 so that repeated scaling never accumulates
// integer rounding; callers that need pixels convert with Rect.Bounds.
//
// # Scale Factors
//
// The horizontal and vertical scale factors are computed independently:
//
//	scaleX = renderedWidth / naturalWidth
//	scaleY = renderedHeight / naturalHeight
//
// The mapping assumes the displayed element has exactly the image's aspect
// ratio. Letterboxed presentations (padding added by a "contain" fit inside a
// larger box) are not compensated for.
//
// # Errors
//
// MapBox fails with ErrNotReady while the natural size is unknown (the image
// has not finished decoding) and with ErrNoLayout while the rendered size is
// not positive (the image is not laid out). Neither is fatal; the caller just
// waits for the next trigger.
package geometry
