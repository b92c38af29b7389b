package detection

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ironsheep/face-overlay/internal/geometry"
)

// UnknownLabel is the label the recognition service assigns to faces that did
// not match any enrolled identity.
const UnknownLabel = "Unknown"

// Record is one face found in an image.
type Record struct {
	// Box is the face bounding box in native image pixels.
	Box geometry.Box `json:"box"`

	// Label is the matched identity, or UnknownLabel.
	Label string `json:"label"`

	// Confidence is the match score in [0, 100]. Only meaningful when the
	// face is recognized.
	Confidence float64 `json:"confidence"`
}

// Recognized reports whether the record resolved to an identity.
func (r Record) Recognized() bool {
	return r.Label != UnknownLabel
}

// Text returns the label shown next to the face box.
//
// Recognized faces read "Alice (92.3%)" with the confidence rounded to one
// decimal place. Unknown faces show only the label.
func (r Record) Text() string {
	if !r.Recognized() {
		return r.Label
	}
	return fmt.Sprintf("%s (%s%%)", r.Label, oneDecimal(r.Confidence))
}

// oneDecimal formats v with one decimal place, rounding on v's exact binary
// value with exact ties going away from zero. 87.25 gives "87.3" while 60.05,
// stored as 60.04999..., gives "60.0".
func oneDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprintf("%.1f", v)
	}
	neg := v < 0
	if neg {
		v = -v
	}

	// 128 bits hold v*10 exactly.
	tenths := new(big.Float).SetPrec(128).SetFloat64(v)
	tenths.Mul(tenths, big.NewFloat(10))
	n, _ := tenths.Int(nil)
	frac := new(big.Float).SetPrec(128).Sub(tenths, new(big.Float).SetInt(n))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		n.Add(n, big.NewInt(1))
	}

	digits := n.String()
	if len(digits) < 2 {
		digits = "0" + digits
	}
	out := digits[:len(digits)-1] + "." + digits[len(digits)-1:]
	if neg && n.Sign() != 0 {
		out = "-" + out
	}
	return out
}

// ResultSet is the outcome of one recognition request.
type ResultSet struct {
	// Records are the detected faces in detection order.
	Records []Record `json:"records"`

	// FacesDetected is the count reported by the service.
	FacesDetected int `json:"faces_detected"`

	// ProcessingTime is the service-side processing time in seconds.
	ProcessingTime float64 `json:"processing_time"`
}

// Len returns the number of records, treating a nil set as empty.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Empty reports whether there is nothing to draw.
func (rs *ResultSet) Empty() bool {
	return rs.Len() == 0
}

// RecognizedCount returns how many records resolved to an identity.
func (rs *ResultSet) RecognizedCount() int {
	if rs == nil {
		return 0
	}
	n := 0
	for _, r := range rs.Records {
		if r.Recognized() {
			n++
		}
	}
	return n
}

// Summary is the display metadata of a ResultSet.
type Summary struct {
	FacesDetected  int     `json:"faces_detected"`
	Recognized     int     `json:"recognized"`
	Unknown        int     `json:"unknown"`
	ProcessingTime float64 `json:"processing_time"`
	Message        string  `json:"message"`
}

// Summarize builds the status line shown after a recognition request.
func (rs *ResultSet) Summarize() Summary {
	if rs.Empty() {
		s := Summary{Message: "No faces detected in the image"}
		if rs != nil {
			s.ProcessingTime = rs.ProcessingTime
		}
		return s
	}

	recognized := rs.RecognizedCount()
	s := Summary{
		FacesDetected:  rs.FacesDetected,
		Recognized:     recognized,
		Unknown:        rs.Len() - recognized,
		ProcessingTime: rs.ProcessingTime,
	}
	if recognized == 0 {
		s.Message = "Faces detected but no matches found in database"
	} else {
		s.Message = fmt.Sprintf("Successfully recognized %d out of %d faces", recognized, rs.FacesDetected)
	}
	return s
}

// ConfidenceLevel buckets a confidence score for the results list:
// "success" from 80, "warning" from 60, "error" below that.
func ConfidenceLevel(confidence float64) string {
	switch {
	case confidence >= 80:
		return "success"
	case confidence >= 60:
		return "warning"
	default:
		return "error"
	}
}
