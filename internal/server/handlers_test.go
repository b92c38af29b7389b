package server

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"
)

const aliceResponse = `{"faces_detected":1,"processing_time":0.2,"results":[{"face_location":[100,300,300,100],"name":"Alice","confidence":92.3}]}`

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	tmpFile, err := os.CreateTemp("", "handler-test-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to encode image: %v", err)
	}

	return tmpFile.Name()
}

// callTool sends a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolResult calls a tool that must succeed and decodes its JSON text result.
func toolResult(t *testing.T, s *Server, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()

	resp := callTool(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error: %+v", name, resp.Error)
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("%s: unexpected content %v", name, content)
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("%s: result is not JSON: %v", name, err)
	}
	return out
}

// loadTestImage loads a 1200x800 image file laid out at 600x400.
func loadTestImage(t *testing.T, s *Server) map[string]interface{} {
	t.Helper()
	imgPath := createTestImageFile(t, 1200, 800, color.RGBA{40, 40, 40, 255})
	t.Cleanup(func() { os.Remove(imgPath) })

	return toolResult(t, s, "overlay_set_image", map[string]interface{}{
		"source":          imgPath,
		"container_width": 600,
	})
}

func TestHandleToolsCall_SetImage(t *testing.T) {
	s := newTestServer(t)

	loaded := loadTestImage(t, s)

	if loaded["generation"] != float64(1) {
		t.Errorf("generation: got %v, want 1", loaded["generation"])
	}
	info := loaded["info"].(map[string]interface{})
	if info["width"] != float64(1200) || info["height"] != float64(800) {
		t.Errorf("info: got %v", info)
	}
	rendered := loaded["rendered"].(map[string]interface{})
	if rendered["width"] != float64(600) || rendered["height"] != float64(400) {
		t.Errorf("rendered: got %v, want 600x400", rendered)
	}
}

func TestHandleToolsCall_SetImageInvalid(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "overlay_set_image", map[string]interface{}{
		"source": "/nonexistent/image.png",
	})

	if resp.Error == nil {
		t.Fatal("expected error for missing image")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_SetResults(t *testing.T) {
	s := newTestServer(t)
	loaded := loadTestImage(t, s)

	var response map[string]interface{}
	if err := json.Unmarshal([]byte(aliceResponse), &response); err != nil {
		t.Fatal(err)
	}

	out := toolResult(t, s, "overlay_set_results", map[string]interface{}{
		"response":   response,
		"generation": loaded["generation"],
	})

	if out["applied"] != true {
		t.Fatalf("results not applied: %v", out)
	}
	summary := out["summary"].(map[string]interface{})
	if summary["message"] != "Successfully recognized 1 out of 1 faces" {
		t.Errorf("summary message: got %v", summary["message"])
	}

	outcome := out["outcome"].(map[string]interface{})
	annotations := outcome["annotations"].([]interface{})
	if len(annotations) != 1 {
		t.Fatalf("got %d annotations, want 1", len(annotations))
	}
	a := annotations[0].(map[string]interface{})
	if a["text"] != "Alice (92.3%)" {
		t.Errorf("text: got %v", a["text"])
	}
	box := a["box"].(map[string]interface{})
	for k, want := range map[string]float64{"x": 50, "y": 50, "width": 100, "height": 100} {
		if box[k] != want {
			t.Errorf("box.%s: got %v, want %v", k, box[k], want)
		}
	}
}

func TestHandleToolsCall_SetResultsStaleGeneration(t *testing.T) {
	s := newTestServer(t)
	loadTestImage(t, s)
	loadTestImage(t, s)

	var response map[string]interface{}
	json.Unmarshal([]byte(aliceResponse), &response)

	out := toolResult(t, s, "overlay_set_results", map[string]interface{}{
		"response":   response,
		"generation": 1,
	})
	if out["applied"] != false {
		t.Errorf("stale results should not apply: %v", out)
	}
}

func TestHandleToolsCall_SetResultsInvalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing response", map[string]interface{}{}},
		{"short face_location", map[string]interface{}{
			"response": map[string]interface{}{
				"results": []interface{}{
					map[string]interface{}{"face_location": []int{1, 2, 3}, "name": "Bob", "confidence": 50},
				},
			},
		}},
		{"inverted box", map[string]interface{}{
			"response": map[string]interface{}{
				"results": []interface{}{
					map[string]interface{}{"face_location": []int{300, 100, 100, 300}, "name": "Bob", "confidence": 50},
				},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "overlay_set_results", tt.args)
			if resp.Error == nil || resp.Error.Code != -32000 {
				t.Errorf("expected tool error, got %+v", resp.Error)
			}
		})
	}
}

func TestHandleToolsCall_Render(t *testing.T) {
	s := newTestServer(t)

	if resp := callTool(t, s, "overlay_render", nil); resp.Error == nil {
		t.Error("render before any draw should fail")
	}

	loadTestImage(t, s)

	for _, mode := range []string{"overlay", "composite"} {
		t.Run(mode, func(t *testing.T) {
			out := toolResult(t, s, "overlay_render", map[string]interface{}{"mode": mode})

			if out["mode"] != mode {
				t.Errorf("mode: got %v", out["mode"])
			}
			data, err := base64.StdEncoding.DecodeString(out["image_base64"].(string))
			if err != nil {
				t.Fatalf("failed to decode base64: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("failed to decode png: %v", err)
			}
			if img.Bounds().Dx() != 600 || img.Bounds().Dy() != 400 {
				t.Errorf("size: got %v, want 600x400", img.Bounds())
			}
		})
	}

	if resp := callTool(t, s, "overlay_render", map[string]interface{}{"mode": "sketch"}); resp.Error == nil {
		t.Error("unknown mode should fail")
	}
}

func TestHandleToolsCall_Redraw(t *testing.T) {
	s := newTestServer(t)

	if resp := callTool(t, s, "overlay_redraw", nil); resp.Error == nil {
		t.Error("redraw before any draw should fail")
	}

	loadTestImage(t, s)
	first := toolResult(t, s, "overlay_status", nil)["last_outcome"].(map[string]interface{})

	out := toolResult(t, s, "overlay_redraw", nil)
	if out["cycle"] != first["cycle"].(float64)+1 {
		t.Errorf("cycle: got %v, want %v", out["cycle"], first["cycle"].(float64)+1)
	}
	if out["generation"] != float64(1) {
		t.Errorf("generation: got %v, want 1", out["generation"])
	}
	if out["width"] != float64(600) || out["height"] != float64(400) {
		t.Errorf("size: got %vx%v, want 600x400", out["width"], out["height"])
	}
}

func TestHandleToolsCall_ResizeAndUnmount(t *testing.T) {
	s := newTestServer(t)
	loadTestImage(t, s)

	st := toolResult(t, s, "overlay_resize", map[string]interface{}{"width": 300, "height": 200})
	rendered := st["rendered"].(map[string]interface{})
	if rendered["width"] != float64(300) {
		t.Errorf("rendered width: got %v, want 300", rendered["width"])
	}

	st = toolResult(t, s, "overlay_unmount", nil)
	if st["mounted"] != false {
		t.Errorf("mounted: got %v, want false", st["mounted"])
	}
	if st["state"] != "ready" {
		t.Errorf("state: got %v, want ready", st["state"])
	}

	st = toolResult(t, s, "overlay_resize", map[string]interface{}{"container_width": 900})
	if st["state"] != "drawn" {
		t.Errorf("state: got %v, want drawn", st["state"])
	}
	rendered = st["rendered"].(map[string]interface{})
	if rendered["width"] != float64(750) || rendered["height"] != float64(500) {
		t.Errorf("rendered: got %v, want 750x500", rendered)
	}

	if resp := callTool(t, s, "overlay_resize", map[string]interface{}{}); resp.Error == nil {
		t.Error("resize without a size should fail")
	}
}

func TestHandleToolsCall_MapBox(t *testing.T) {
	s := newTestServer(t)
	box := map[string]interface{}{"top": 100, "right": 300, "bottom": 300, "left": 100}

	out := toolResult(t, s, "overlay_map_box", map[string]interface{}{
		"box":             box,
		"natural_width":   1200,
		"natural_height":  800,
		"rendered_width":  600,
		"rendered_height": 400,
	})
	rect := out["rect"].(map[string]interface{})
	if rect["x"] != float64(50) || rect["width"] != float64(100) {
		t.Errorf("rect: got %v", rect)
	}

	// Without sizes the current image is used; none is loaded yet.
	resp := callTool(t, s, "overlay_map_box", map[string]interface{}{"box": box})
	if resp.Error == nil || !strings.Contains(resp.Error.Data.(string), "not") {
		t.Errorf("expected not-ready error, got %+v", resp.Error)
	}

	loadTestImage(t, s)
	out = toolResult(t, s, "overlay_map_box", map[string]interface{}{"box": box})
	rect = out["rect"].(map[string]interface{})
	if rect["y"] != float64(50) || rect["height"] != float64(100) {
		t.Errorf("rect: got %v", rect)
	}

	if resp := callTool(t, s, "overlay_map_box", map[string]interface{}{}); resp.Error == nil {
		t.Error("missing box should fail")
	}
}

func TestHandleToolsCall_FaceCrops(t *testing.T) {
	s := newTestServer(t)
	loadTestImage(t, s)

	var response map[string]interface{}
	json.Unmarshal([]byte(aliceResponse), &response)
	toolResult(t, s, "overlay_set_results", map[string]interface{}{"response": response})

	out := toolResult(t, s, "overlay_face_crops", map[string]interface{}{"scale": 0.5})
	if out["count"] != float64(1) {
		t.Fatalf("count: got %v, want 1", out["count"])
	}
	face := out["faces"].([]interface{})[0].(map[string]interface{})
	if face["label"] != "Alice" || face["level"] != "success" {
		t.Errorf("face: got label=%v level=%v", face["label"], face["level"])
	}
	if face["width"] != float64(100) {
		t.Errorf("width: got %v, want 100", face["width"])
	}
}

func TestHandleToolsCall_StatusAndClear(t *testing.T) {
	s := newTestServer(t)
	loadTestImage(t, s)

	var response map[string]interface{}
	json.Unmarshal([]byte(aliceResponse), &response)
	toolResult(t, s, "overlay_set_results", map[string]interface{}{"response": response})

	st := toolResult(t, s, "overlay_status", nil)
	if st["state"] != "drawn" {
		t.Errorf("state: got %v, want drawn", st["state"])
	}
	legend, ok := st["legend"].([]interface{})
	if !ok || len(legend) != 2 {
		t.Errorf("legend: got %v", st["legend"])
	}

	st = toolResult(t, s, "overlay_clear", nil)
	if st["state"] != "idle" {
		t.Errorf("state after clear: got %v, want idle", st["state"])
	}
	if _, ok := st["legend"]; ok {
		t.Error("legend should be omitted after clear")
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "image_ocr_full", nil)
	if resp.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  []byte(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
}
