// Package imaging turns scanned pages into binary pixel grids and provides
// the geometric primitives the form reader builds on.
//
// A page is loaded once, binarized against a gray threshold and kept as a
// Grid: a width×height bitmap that only answers "is this pixel black".
// Everything downstream (labeling, outline tracing, bubble scoring) works on
// that bitmap, never on the original colors.
//
// # Coordinate System
//
// All coordinates are 0-based with (0,0) at the top-left corner, X growing
// rightward and Y growing downward. Points compare in row-major order: Y
// first, then X, which is the order a raster scan visits them.
//
// Queries outside the grid are not errors. Black reports false for any
// out-of-bounds point, so neighborhood scans near the edges need no special
// casing.
//
// # Mutation
//
// A Grid is treated as immutable with two exceptions:
//   - Mark appends debug annotations, which are only used when rendering
//     an annotated copy of the page.
//   - Rotate replaces the bitmap in place. Anything derived from the old
//     bitmap (labels, outlines) must be recomputed afterwards.
//
// # Thread Safety
//
// A Grid is owned by one goroutine at a time. The pipeline hands a page to a
// single decoding worker, so no locking is done here.
package imaging
