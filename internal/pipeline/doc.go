// Package pipeline drives documents through two worker pools: one extracts
// page grids from each document and the other decodes each page.
//
// A Form tracks one document. Its completion fires exactly once, when the
// last page is done, whatever order the pages finish in. In server mode the
// form's report is then stored and the form and its file are removed.
//
// Progress is published on a StatusBoard, which long-polling callers wait
// on through Processor.StatusWait.
package pipeline
