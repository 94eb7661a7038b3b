package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/omecollection/pkg/collection"
	"github.com/matzehuels/omecollection/pkg/render"
)

// Options configures collection diagram rendering.
type Options struct {
	// Detailed adds the image id, category and origin to leaf labels.
	// When false, only the node name is shown.
	Detailed bool
}

// Fill colours by leaf kind.
const (
	fillIntensity = "white"
	fillLabel     = "lightgoldenrod1"
	fillReference = "lightgrey"
)

// ToDOT converts a collection tree to Graphviz DOT format.
// The resulting DOT string can be rendered using [RenderSVG], [RenderPDF], or [RenderPNG].
//
// Collections become clusters, leaves become boxes (labels filled), and
// every leaf with source references gets an edge to each resolved source:
// dashed for labels, solid for processed images. Node ids are the leaves'
// tree paths.
func ToDOT(w *collection.Wrapper, opts Options) string {
	c := w.OME

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	fmt.Fprintf(&buf, "  label=%q;\n", c.Name)
	buf.WriteString("  labelloc=t;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	writeNodes(&buf, c.Nodes, "", 1, opts)

	buf.WriteString("\n")
	for _, l := range c.Leaves() {
		resolved, _ := c.ResolveSources(l.Path)
		style := ""
		if l.Node.IsLabel() {
			style = " [style=dashed]"
		}
		for _, src := range resolved {
			fmt.Fprintf(&buf, "  %q -> %q%s;\n", l.Path, src.Path, style)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeNodes(buf *bytes.Buffer, nodes []collection.Node, prefix string, depth int, opts Options) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		path := n.NodeName()
		if prefix != "" {
			path = prefix + "/" + path
		}

		switch n := n.(type) {
		case *collection.MultiscaleNode:
			fmt.Fprintf(buf, "%s%q [%s];\n", indent, path, strings.Join(leafAttrs(n, opts), ", "))

		case *collection.CollectionNode:
			if n.IsReference() {
				label := n.Name + "\n" + n.Path
				fmt.Fprintf(buf, "%s%q [label=%q, shape=folder, fillcolor=%s];\n", indent, path, label, fillReference)
				continue
			}
			fmt.Fprintf(buf, "%ssubgraph %q {\n", indent, "cluster_"+path)
			fmt.Fprintf(buf, "%s  label=%q;\n", indent, n.Name)
			fmt.Fprintf(buf, "%s  style=\"rounded,dashed\";\n", indent)
			if len(n.Nodes) == 0 {
				// Graphviz drops empty clusters.
				fmt.Fprintf(buf, "%s  %q [label=\"(empty)\", shape=plaintext, style=\"\"];\n", indent, path+"/")
			}
			writeNodes(buf, n.Nodes, path, depth+1, opts)
			fmt.Fprintf(buf, "%s}\n", indent)
		}
	}
}

func leafAttrs(n *collection.MultiscaleNode, opts Options) []string {
	fill := fillIntensity
	if n.IsLabel() {
		fill = fillLabel
	}
	return []string{
		fmt.Sprintf("label=%q", leafLabel(n, opts.Detailed)),
		"fillcolor=" + fill,
	}
}

func leafLabel(n *collection.MultiscaleNode, detailed bool) string {
	if !detailed || n.Attributes == nil {
		return n.Name
	}
	a := n.Attributes
	parts := []string{n.Name, fmt.Sprintf("image: %d", a.ImageID)}
	if a.Category != "" {
		parts = append(parts, fmt.Sprintf("%s / %s", a.Category, a.Origin))
	}
	if n.Path != "" {
		parts = append(parts, n.Path)
	}
	return strings.Join(parts, "\n")
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
