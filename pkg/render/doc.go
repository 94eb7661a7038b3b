// Package render provides diagram output for collection trees.
//
// # Overview
//
// This package holds the format conversion shared by the renderers:
//
//   - Generic format conversion (SVG to PDF/PNG)
//   - Node-link diagrams of a collection (in [nodelink] subpackage)
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	dot := nodelink.ToDOT(w, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0)  // 2x scale
//
// [nodelink]: github.com/matzehuels/omecollection/pkg/render/nodelink
package render
