// Package canvas implements the in-memory design document the command agent
// executes against.
//
// A Document is a tree of frames, rectangles, ellipses, and text nodes with
// absolute geometry, RGBA paints constrained to [0,1], and PNG export. All
// operations are safe for concurrent use; each takes the document lock, so
// command handlers can run on independent goroutines.
package canvas
