// Package imaging decodes image sources and produces the images the overlay
// host hands back to clients.
//
// This package covers the image side of the overlay: turning the opaque
// source supplied by an upload or capture flow into a decoded image,
// compositing the annotation layer over the displayed image, and cutting face
// crops out of the native image. All operations work with standard Go
// image.Image types and use a coordinate system where (0,0) is at the top-left
// corner, X increases rightward, and Y increases downward.
//
// # Image Sources
//
// ImageCache accepts three kinds of source:
//   - data URIs as produced by FileReader.readAsDataURL or a webcam screenshot
//   - bare base64 payloads
//   - file paths
//
// EXIF orientation is applied during decode.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Composite, CropBox and
// EncodePNG are stateless and can be called concurrently.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Empty or malformed sources
//   - Undecodable image data
//   - Crop boxes entirely outside the image
//   - Encoding errors during image output
package imaging
