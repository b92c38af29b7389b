package detection

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/face-overlay/internal/geometry"
)

// ErrInvalidResponse is returned when a recognition response fails shape checks.
var ErrInvalidResponse = errors.New("invalid recognition response")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Result is one entry of the recognition service's results array.
type Result struct {
	FaceLocation []float64 `json:"face_location" validate:"len=4"`
	Name         string    `json:"name" validate:"required"`
	Confidence   float64   `json:"confidence" validate:"gte=0,lte=100"`
}

// Response is the recognition service's response body.
type Response struct {
	FacesDetected  int      `json:"faces_detected" validate:"gte=0"`
	ProcessingTime float64  `json:"processing_time" validate:"gte=0"`
	Results        []Result `json:"results" validate:"dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateFaceLocation, Result{})
	return v
}

// validateFaceLocation enforces top < bottom and left < right once the
// location has the right length.
func validateFaceLocation(sl validator.StructLevel) {
	r := sl.Current().Interface().(Result)
	if len(r.FaceLocation) != 4 {
		return
	}
	top, right, bottom, left := r.FaceLocation[0], r.FaceLocation[1], r.FaceLocation[2], r.FaceLocation[3]
	if !(top < bottom) {
		sl.ReportError(r.FaceLocation, "face_location", "FaceLocation", "top_lt_bottom", "")
	}
	if !(left < right) {
		sl.ReportError(r.FaceLocation, "face_location", "FaceLocation", "left_lt_right", "")
	}
}

// Parse decodes and validates a recognition response body.
func Parse(data []byte) (*ResultSet, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return FromResponse(&resp)
}

// FromResponse validates a decoded response and converts it to a ResultSet.
// A nil response is an empty ResultSet.
func FromResponse(resp *Response) (*ResultSet, error) {
	if resp == nil {
		return &ResultSet{Records: []Record{}}, nil
	}
	if err := validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, describe(err))
	}

	records := make([]Record, 0, len(resp.Results))
	for _, r := range resp.Results {
		records = append(records, Record{
			Box: geometry.Box{
				Top:    r.FaceLocation[0],
				Right:  r.FaceLocation[1],
				Bottom: r.FaceLocation[2],
				Left:   r.FaceLocation[3],
			},
			Label:      r.Name,
			Confidence: r.Confidence,
		})
	}

	return &ResultSet{
		Records:        records,
		FacesDetected:  resp.FacesDetected,
		ProcessingTime: resp.ProcessingTime,
	}, nil
}

// describe flattens validator errors into one line naming each failing field.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
