package server

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/face-overlay/internal/geometry"
	"github.com/ironsheep/face-overlay/internal/session"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "overlay_set_image").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(context.Background(), params.Name, params.Arguments)
	if err != nil {
		s.log.WithField("tool", params.Name).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	// Image
	case "overlay_set_image":
		return s.handleSetImage(ctx, args)
	case "overlay_clear":
		return s.handleClear()

	// Results
	case "overlay_set_results":
		return s.handleSetResults(args)

	// Layout
	case "overlay_resize":
		return s.handleResize(args)
	case "overlay_unmount":
		return s.handleUnmount()

	// Output
	case "overlay_render":
		return s.handleRender(args)
	case "overlay_redraw":
		return s.session.Redraw()
	case "overlay_status":
		return s.session.Status(), nil
	case "overlay_map_box":
		return s.handleMapBox(args)
	case "overlay_face_crops":
		return s.handleFaceCrops(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments, treating absent arguments as {}.
func unmarshalArgs(args jsoniter.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, v)
}

// === Image Handlers ===

type setImageArgs struct {
	Source         string `json:"source"`
	ContainerWidth int    `json:"container_width"`
}

func (s *Server) handleSetImage(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a setImageArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ContainerWidth > 0 {
		s.session.FitContainer(a.ContainerWidth)
	}
	loaded, err := s.session.LoadImage(ctx, a.Source)
	if err != nil && !errors.Is(err, session.ErrDecodePending) {
		return nil, err
	}
	return loaded, nil
}

func (s *Server) handleClear() (interface{}, error) {
	s.session.Clear()
	return s.session.Status(), nil
}

// === Result Handlers ===

type setResultsArgs struct {
	Response   jsoniter.RawMessage `json:"response"`
	Generation uint64              `json:"generation"`
}

type setResultsResult struct {
	Applied bool        `json:"applied"`
	Records int         `json:"records"`
	Summary interface{} `json:"summary,omitempty"`
	Outcome interface{} `json:"outcome,omitempty"`
}

func (s *Server) handleSetResults(args jsoniter.RawMessage) (interface{}, error) {
	var a setResultsArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Response) == 0 {
		return nil, fmt.Errorf("response is required")
	}

	rs, applied, err := s.session.SetResultsJSON(a.Generation, a.Response)
	if err != nil {
		return nil, err
	}

	res := setResultsResult{Applied: applied, Records: rs.Len()}
	if applied {
		st := s.session.Status()
		res.Summary = st.Summary
		if st.Outcome != nil {
			res.Outcome = st.Outcome
		}
	}
	return res, nil
}

// === Layout Handlers ===

type resizeArgs struct {
	Width          int `json:"width"`
	Height         int `json:"height"`
	ContainerWidth int `json:"container_width"`
}

func (s *Server) handleResize(args jsoniter.RawMessage) (interface{}, error) {
	var a resizeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	switch {
	case a.Width > 0 && a.Height > 0:
		s.session.SetRenderedSize(a.Width, a.Height)
	case a.ContainerWidth > 0:
		s.session.FitContainer(a.ContainerWidth)
	default:
		return nil, fmt.Errorf("give width and height, or container_width")
	}
	return s.session.Status(), nil
}

func (s *Server) handleUnmount() (interface{}, error) {
	s.session.Unmount()
	return s.session.Status(), nil
}

// === Output Handlers ===

type renderArgs struct {
	Mode string `json:"mode"`
}

func (s *Server) handleRender(args jsoniter.RawMessage) (interface{}, error) {
	var a renderArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return s.session.Render(a.Mode)
}

type mapBoxArgs struct {
	Box            *geometry.Box `json:"box"`
	NaturalWidth   float64       `json:"natural_width"`
	NaturalHeight  float64       `json:"natural_height"`
	RenderedWidth  float64       `json:"rendered_width"`
	RenderedHeight float64       `json:"rendered_height"`
}

type mapBoxResult struct {
	Rect    geometry.Rect           `json:"rect"`
	Context geometry.DisplayContext `json:"context"`
}

func (s *Server) handleMapBox(args jsoniter.RawMessage) (interface{}, error) {
	var a mapBoxArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Box == nil {
		return nil, fmt.Errorf("box is required")
	}

	if a.NaturalWidth == 0 && a.NaturalHeight == 0 && a.RenderedWidth == 0 && a.RenderedHeight == 0 {
		r, ctx, err := s.session.MapBox(*a.Box)
		if err != nil {
			return nil, err
		}
		return mapBoxResult{Rect: r, Context: ctx}, nil
	}

	ctx := geometry.DisplayContext{
		NaturalWidth:   a.NaturalWidth,
		NaturalHeight:  a.NaturalHeight,
		RenderedWidth:  a.RenderedWidth,
		RenderedHeight: a.RenderedHeight,
	}
	r, err := geometry.MapBox(*a.Box, ctx)
	if err != nil {
		return nil, err
	}
	return mapBoxResult{Rect: r, Context: ctx}, nil
}

type faceCropsArgs struct {
	Scale float64 `json:"scale"`
}

func (s *Server) handleFaceCrops(args jsoniter.RawMessage) (interface{}, error) {
	var a faceCropsArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	crops, err := s.session.FaceCrops(a.Scale)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"faces": crops,
		"count": len(crops),
	}, nil
}
