// Package caption runs the per-segment captioning sub-pipeline.
//
// A run moves through six phases, each owning a fixed slice of the segment's
// 0-100 progress: audio extraction (0-5), speech-to-text (5-45), subtitle
// assembly (45-50), burn-in (50-80), title overlay (80-95), and cleanup
// (95-100). All intermediates are written inside the caller's work directory;
// the caller decides when to publish them.
package caption
