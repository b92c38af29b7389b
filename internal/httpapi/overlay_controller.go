package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ironsheep/face-overlay/internal/detection"
	"github.com/ironsheep/face-overlay/internal/geometry"
	"github.com/ironsheep/face-overlay/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SetImageRequest is the body of POST /overlay/image.
type SetImageRequest struct {
	Source         string `json:"source" binding:"required"`
	ContainerWidth int    `json:"container_width" binding:"gte=0"`
}

// SetResultsRequest is the body of POST /overlay/results.
type SetResultsRequest struct {
	Response   jsoniter.RawMessage `json:"response"`
	Generation uint64              `json:"generation"`
}

// SetResultsResponse reports whether results were installed and what was drawn.
type SetResultsResponse struct {
	Applied bool               `json:"applied"`
	Records int                `json:"records"`
	Summary *detection.Summary `json:"summary,omitempty"`
	Outcome interface{}        `json:"outcome,omitempty"`
}

// LayoutRequest is the body of POST /overlay/layout. Give width and height,
// or container_width.
type LayoutRequest struct {
	Width          int `json:"width" binding:"gte=0"`
	Height         int `json:"height" binding:"gte=0"`
	ContainerWidth int `json:"container_width" binding:"gte=0"`
}

// MapBoxRequest is the body of POST /overlay/map-box. Without sizes the
// current image and layout are used.
type MapBoxRequest struct {
	Box            *geometry.Box `json:"box" binding:"required"`
	NaturalWidth   float64       `json:"natural_width"`
	NaturalHeight  float64       `json:"natural_height"`
	RenderedWidth  float64       `json:"rendered_width"`
	RenderedHeight float64       `json:"rendered_height"`
}

// MapBoxResponse is a mapped rectangle with the context it was mapped in.
type MapBoxResponse struct {
	Rect    geometry.Rect           `json:"rect"`
	Context geometry.DisplayContext `json:"context"`
}

// OverlayController serves the overlay session.
type OverlayController struct {
	session *session.Session
	log     logrus.FieldLogger
	tracer  trace.Tracer
}

// NewOverlayController creates a controller for sess.
func NewOverlayController(sess *session.Session, log logrus.FieldLogger) *OverlayController {
	return &OverlayController{
		session: sess,
		log:     log,
		tracer:  otel.Tracer("overlay-controller"),
	}
}

// RegisterRoutes registers overlay routes with the gin router
func (oc *OverlayController) RegisterRoutes(router *gin.RouterGroup) {
	routes := router.Group("/overlay")
	{
		routes.POST("/image", oc.SetImage)
		routes.DELETE("/image", oc.Clear)

		routes.POST("/results", oc.SetResults)

		routes.POST("/layout", oc.Layout)
		routes.DELETE("/layout", oc.Unmount)

		routes.GET("/render", oc.Render)
		routes.POST("/redraw", oc.Redraw)
		routes.GET("/status", oc.Status)
		routes.POST("/map-box", oc.MapBox)
		routes.GET("/faces", oc.Faces)
	}
}

func (oc *OverlayController) fail(c *gin.Context, span trace.Span, status int, code string, err error) {
	span.RecordError(err)
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Error: code, Details: err.Error()})
}

// SetImage sets the image and waits for it to decode. A decode that outlasts
// the wait is answered with 202 and the image's generation.
func (oc *OverlayController) SetImage(c *gin.Context) {
	ctx, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.set_image")
	defer span.End()

	var req SetImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oc.fail(c, span, http.StatusBadRequest, "INVALID_REQUEST", fmt.Errorf("invalid request body: %w", err))
		return
	}
	span.SetAttributes(attribute.Int("container_width", req.ContainerWidth))

	if req.ContainerWidth > 0 {
		oc.session.FitContainer(req.ContainerWidth)
	}
	loaded, err := oc.session.LoadImage(ctx, req.Source)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSuperseded):
		oc.fail(c, span, http.StatusConflict, "IMAGE_SUPERSEDED", err)
		return
	case errors.Is(err, session.ErrDecodePending):
		span.SetAttributes(
			attribute.Int64("generation", int64(loaded.Generation)),
			attribute.Bool("pending", true),
		)
		c.JSON(http.StatusAccepted, loaded)
		return
	default:
		oc.fail(c, span, http.StatusUnprocessableEntity, "DECODE_FAILED", err)
		return
	}

	span.SetAttributes(
		attribute.Int64("generation", int64(loaded.Generation)),
		attribute.String("image_id", loaded.ImageID),
	)
	c.JSON(http.StatusOK, loaded)
}

// Clear drops the image and results.
func (oc *OverlayController) Clear(c *gin.Context) {
	_, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.clear")
	defer span.End()

	oc.session.Clear()
	c.JSON(http.StatusOK, oc.session.Status())
}

// SetResults installs a recognition response. The body is either
// {"response": {...}, "generation": n} or the bare response.
func (oc *OverlayController) SetResults(c *gin.Context) {
	_, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.set_results")
	defer span.End()

	body, err := c.GetRawData()
	if err != nil {
		oc.fail(c, span, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	var req SetResultsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		oc.fail(c, span, http.StatusBadRequest, "INVALID_REQUEST", fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Response) == 0 {
		req.Response = body
	}
	span.SetAttributes(attribute.Int64("generation", int64(req.Generation)))

	rs, applied, err := oc.session.SetResultsJSON(req.Generation, req.Response)
	if err != nil {
		oc.fail(c, span, http.StatusBadRequest, "INVALID_RESULTS", err)
		return
	}

	resp := SetResultsResponse{Applied: applied, Records: rs.Len()}
	if applied {
		st := oc.session.Status()
		resp.Summary = st.Summary
		if st.Outcome != nil {
			resp.Outcome = st.Outcome
		}
	}
	span.SetAttributes(attribute.Bool("applied", applied), attribute.Int("records", resp.Records))
	c.JSON(http.StatusOK, resp)
}

// Layout reports the rendered size or container width.
func (oc *OverlayController) Layout(c *gin.Context) {
	_, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.layout")
	defer span.End()

	var req LayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oc.fail(c, span, http.StatusBadRequest, "INVALID_REQUEST", fmt.Errorf("invalid request body: %w", err))
		return
	}

	switch {
	case req.Width > 0 && req.Height > 0:
		oc.session.SetRenderedSize(req.Width, req.Height)
	case req.ContainerWidth > 0:
		oc.session.FitContainer(req.ContainerWidth)
	default:
		oc.fail(c, span, http.StatusBadRequest, "INVALID_REQUEST", errors.New("give width and height, or container_width"))
		return
	}
	c.JSON(http.StatusOK, oc.session.Status())
}

// Unmount detaches the view.
func (oc *OverlayController) Unmount(c *gin.Context) {
	_, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.unmount")
	defer span.End()

	oc.session.Unmount()
	c.JSON(http.StatusOK, oc.session.Status())
}

// Render returns the annotation layer or composite. With format=png the PNG
// bytes are sent directly; otherwise the JSON encoding is returned.
func (oc *OverlayController) Render(c *gin.Context) {
	_, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.render")
	defer span.End()

	mode := c.DefaultQuery("mode", session.ModeOverlay)
	span.SetAttributes(attribute.String("mode", mode))

	out, err := oc.session.Render(mode)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNothingDrawn):
		oc.fail(c, span, http.StatusConflict, "NOT_DRAWN", err)
		return
	default:
		oc.fail(c, span, http.StatusBadRequest, "RENDER_FAILED", err)
		return
	}

	if c.Query("format") == "png" {
		data, err := base64.StdEncoding.DecodeString(out.ImageBase64)
		if err != nil {
			oc.fail(c, span, http.StatusInternalServerError, "ENCODE_FAILED", err)
			return
		}
		c.Data(http.StatusOK, out.MimeType, data)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Redraw draws the current image again and returns the outcome.
func (oc *OverlayController) Redraw(c *gin.Context) {
	_, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.redraw")
	defer span.End()

	out, err := oc.session.Redraw()
	if err != nil {
		oc.fail(c, span, http.StatusConflict, "NOT_DRAWN", err)
		return
	}
	span.SetAttributes(
		attribute.Int64("generation", int64(out.Generation)),
		attribute.Int64("cycle", int64(out.Cycle)),
	)
	c.JSON(http.StatusOK, out)
}

// Status reports the session state.
func (oc *OverlayController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, oc.session.Status())
}

// MapBox maps a native box to display space.
func (oc *OverlayController) MapBox(c *gin.Context) {
	_, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.map_box")
	defer span.End()

	var req MapBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oc.fail(c, span, http.StatusBadRequest, "INVALID_REQUEST", fmt.Errorf("invalid request body: %w", err))
		return
	}

	var (
		resp MapBoxResponse
		err  error
	)
	if req.NaturalWidth == 0 && req.NaturalHeight == 0 && req.RenderedWidth == 0 && req.RenderedHeight == 0 {
		resp.Rect, resp.Context, err = oc.session.MapBox(*req.Box)
	} else {
		resp.Context = geometry.DisplayContext{
			NaturalWidth:   req.NaturalWidth,
			NaturalHeight:  req.NaturalHeight,
			RenderedWidth:  req.RenderedWidth,
			RenderedHeight: req.RenderedHeight,
		}
		resp.Rect, err = geometry.MapBox(*req.Box, resp.Context)
	}
	if err != nil {
		oc.fail(c, span, http.StatusConflict, "NOT_MAPPABLE", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Faces returns a thumbnail per detected face.
func (oc *OverlayController) Faces(c *gin.Context) {
	_, span := oc.tracer.Start(c.Request.Context(), "overlay_controller.faces")
	defer span.End()

	scale := 1.0
	if v := c.Query("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			oc.fail(c, span, http.StatusBadRequest, "INVALID_REQUEST", fmt.Errorf("invalid scale %q", v))
			return
		}
		scale = f
	}
	span.SetAttributes(attribute.Float64("scale", scale))

	crops, err := oc.session.FaceCrops(scale)
	if err != nil {
		oc.fail(c, span, http.StatusConflict, "NO_IMAGE", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"faces": crops, "count": len(crops)})
}
