// Package server implements the MCP (Model Context Protocol) server that
// drives a face overlay session.
//
// A client sets an image, hands over the recognition API's response, reports
// layout changes, and reads back the annotated result. All tools operate on
// one shared session.Session.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image:
//   - overlay_set_image: Set and decode the image, returns its generation
//     (with pending set if the decode outlasted the wait)
//   - overlay_clear: Drop image and results
//
// Results:
//   - overlay_set_results: Install a recognition response and redraw
//
// Layout:
//   - overlay_resize: Explicit rendered size or container width
//   - overlay_unmount: Detach the view
//
// Output:
//   - overlay_render: Annotation layer or composite as base64 PNG
//   - overlay_redraw: Draw again at the current layout
//   - overlay_status: Renderer state, summary and legend
//   - overlay_map_box: Native box to display rectangle
//   - overlay_face_crops: Per-face thumbnails
//
// # Generations
//
// Every overlay_set_image bumps the image generation. Results passed with an
// older generation are discarded rather than drawn over the wrong image.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server
