// Package overlay draws face annotations on a surface congruent to a displayed image.
//
// The Renderer owns an RGBA surface sized to the image's rendered (on-screen)
// size. Each redraw clears the whole surface and paints one annotation per
// detection record: a status-colored outline, and a label tag holding the
// identity and confidence. The surface is meant to be composited directly on
// top of the displayed image.
//
// # Lifecycle
//
// A Renderer moves through these states:
//
//	Idle -> AwaitingDecode -> Ready -> Drawing -> Drawn
//
// SetImage starts an asynchronous decode and enters AwaitingDecode. When the
// decode completes the renderer enters Ready and draws immediately. New
// results, Resize and Redraw repaint from Ready or Drawn. Clear returns to
// Idle.
//
// # Staleness
//
// Every SetImage increments a generation counter. A decode that completes
// after a newer image was set carries an old generation and is dropped, so a
// slow image can never paint its boxes over a newer one. SetResultsFor applies
// the same check to recognition responses that arrive late.
//
// # Failure Handling
//
// Nothing in a draw cycle is reported to the host as an error:
//   - No mounted surface (ErrSurfaceUnavailable): the cycle is a no-op and is
//     retried on the next trigger.
//   - Image not decoded (geometry.ErrNotReady): the cycle waits for decode.
//   - A degenerate box (ErrDegenerateBox): that record is skipped and logged,
//     the rest are drawn.
//
// Callers observe an Outcome describing what was drawn.
//
// # Label Placement
//
// Tags sit above the top-left corner of their box. A tag that would extend
// above the top of the surface is moved to the box's bottom edge instead.
// Tags running past the left or right edge are not moved.
//
// # Thread Safety
//
// Renderer and Viewport are safe for concurrent use. All drawing happens
// under the renderer's lock, so draw cycles never interleave.
package overlay
