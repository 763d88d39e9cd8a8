// Package frame holds the uncompressed image type that flows between capture,
// encoding, decoding and presentation, together with the geometry helpers
// that operate on it: crop rectangles, stride-safe construction from decoder
// buffers and the letterbox mapping between a display and frame pixels.
//
// Frames are values with owned, tightly packed pixel buffers. They are never
// mutated after construction, which lets one goroutine produce them while
// another reads them without further locking.
package frame
