// Package detection defines the face detection records the overlay draws and
// the boundary that turns recognition service responses into them.
//
// A recognition request produces a ResultSet: an ordered list of Records plus
// display-only metadata (faces detected, processing time). Each Record carries
// a bounding box in native image space, a label and a confidence score.
//
// # Wire Format
//
// The recognition service responds with:
//
//	{
//	  "faces_detected": 1,
//	  "processing_time": 0.42,
//	  "results": [
//	    {"face_location": [top, right, bottom, left], "name": "Alice", "confidence": 92.3}
//	  ]
//	}
//
// face_location is always ordered top, right, bottom, left.
//
// # Validation
//
// Parse and FromResponse validate every record before it is handed to the
// renderer: four edges with top < bottom and left < right, a non-empty name
// and a confidence within [0, 100]. Code downstream of this package can rely
// on those invariants without re-checking them on every draw.
//
// # Unknown Faces
//
// The label "Unknown" is a sentinel meaning no enrolled identity matched. Its
// confidence carries no meaning and is never displayed.
package detection
