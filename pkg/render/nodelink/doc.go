// Package nodelink renders collection trees as node-link diagrams.
//
// # Overview
//
// This package produces Graphviz diagrams of a collection: each nested
// collection is a cluster, each multiscale leaf a box, and derived images
// point at the images they were computed from. Label images are filled and
// their edges dashed.
//
// # Usage
//
// Convert a tree to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(w, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// For PDF or PNG output, use the render functions:
//
//	pdf, err := nodelink.RenderPDF(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// Source references that do not resolve to a leaf are left out of the
// diagram; use [collection.OMECollection.CheckSources] to report them.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
