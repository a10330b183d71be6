// Package detection reads bubble-sheet pages: it finds the printed anchor
// boxes, derives the page grid from them and decides which answer bubbles
// were filled in.
//
// # Pipeline
//
// A page goes through these steps, each building on the previous one:
//
//  1. Labeling: a two-pass raster scan groups black pixels into blobs,
//     merging provisional labels through a union-find.
//  2. Box localization: diagonal sweeps from the bottom-left find the
//     anchor boxes along the left margin and the bottom edge. Candidates are
//     first measured cheaply, then confirmed by tracing their outline and
//     checking shape and color.
//  3. Deskew: if the left column of boxes is not vertical, the page is
//     rotated about its top box and relabeled from scratch.
//  4. Reading: search windows are placed relative to the boxes. Blobs inside
//     a window are traced and scored as bubbles, and an adaptive threshold
//     picks at most one filled bubble per question or ID digit.
//
// # Tolerances
//
// Shape checks use absolute pixel tolerances from Params. They were tuned for
// scans around 150-200 DPI, where an anchor box diagonal falls between 40
// and 150 pixels. A per-page Estimate records the diagonal of the first
// valid boxes and tightens the search for the remaining ones.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Rectangles include Min and exclude Max
//
// # Failure Handling
//
// Lookups that miss (a point outside the page, a blob without a closed
// outline) return zero values or flags, never errors. Only whole-page
// problems such as a wrong number of anchor boxes are reported as errors,
// and only Decoder.Decode returns them.
package detection
