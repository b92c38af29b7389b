package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// boxSchema describes a native-space face box.
func boxSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Face box in native image pixels",
		"properties": map[string]interface{}{
			"top":    map[string]interface{}{"type": "number"},
			"right":  map[string]interface{}{"type": "number"},
			"bottom": map[string]interface{}{"type": "number"},
			"left":   map[string]interface{}{"type": "number"},
		},
		"required": []string{"top", "right", "bottom", "left"},
	}
}

func noArgs() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image
		{
			Name:        "overlay_set_image",
			Description: "Set the image annotations are drawn over. Accepts a data: URI, a bare base64 payload or a file path. Previous results are dropped. Waits for the image to decode, lays it out at most max-height tall and returns its generation, which overlay_set_results accepts to guard against late results.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": map[string]interface{}{
						"type":        "string",
						"description": "Image reference: data URI, base64 or absolute path. Empty clears the view.",
					},
					"container_width": map[string]interface{}{
						"type":        "integer",
						"description": "Optional width of the container the image is shown in. Default: unbounded",
					},
				},
				"required": []string{"source"},
			},
		},
		{
			Name:        "overlay_clear",
			Description: "Remove the image and results. The overlay returns to idle.",
			InputSchema: noArgs(),
		},

		// Results
		{
			Name:        "overlay_set_results",
			Description: "Install a recognition response ({faces_detected, processing_time, results: [{face_location: [top,right,bottom,left], name, confidence}]}) and redraw. Returns the summary line and the draw outcome.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"response": map[string]interface{}{
						"type":        "object",
						"description": "Recognition API response body",
					},
					"generation": map[string]interface{}{
						"type":        "integer",
						"description": "Optional image generation from overlay_set_image. Results for an older image are discarded.",
					},
				},
				"required": []string{"response"},
			},
		},

		// Layout
		{
			Name:        "overlay_resize",
			Description: "Report a layout change. Give width and height for an explicit rendered size, or container_width to fit the image into a container. Annotations are redrawn in full.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Rendered image width in pixels",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Rendered image height in pixels",
					},
					"container_width": map[string]interface{}{
						"type":        "integer",
						"description": "Container width to fit the image into",
					},
				},
			},
		},
		{
			Name:        "overlay_unmount",
			Description: "Detach the view. Draws are deferred until the next overlay_resize.",
			InputSchema: noArgs(),
		},

		// Output
		{
			Name:        "overlay_render",
			Description: "Return the current drawing as base64 PNG: the transparent annotation layer (mode 'overlay') or the image with annotations on top (mode 'composite').",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"mode": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"overlay", "composite"},
						"description": "Output mode. Default: overlay",
						"default":     "overlay",
					},
				},
			},
		},
		{
			Name:        "overlay_redraw",
			Description: "Draw the current image and results again at the current layout and return the draw outcome. Fails until the image has been drawn once.",
			InputSchema: noArgs(),
		},
		{
			Name:        "overlay_status",
			Description: "Report the renderer state, sizes, last draw outcome, result summary and color legend.",
			InputSchema: noArgs(),
		},
		{
			Name:        "overlay_map_box",
			Description: "Map a native-space face box to display space. Uses the current image and layout unless natural and rendered sizes are given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"box": boxSchema(),
					"natural_width": map[string]interface{}{
						"type": "number",
					},
					"natural_height": map[string]interface{}{
						"type": "number",
					},
					"rendered_width": map[string]interface{}{
						"type": "number",
					},
					"rendered_height": map[string]interface{}{
						"type": "number",
					},
				},
				"required": []string{"box"},
			},
		},
		{
			Name:        "overlay_face_crops",
			Description: "Cut each detected face out of the native image as base64 PNG thumbnails, with label and confidence level.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor. Default 1.0",
						"default":     1.0,
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
