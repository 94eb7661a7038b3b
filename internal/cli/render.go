package cli

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
	ocio "github.com/matzehuels/omecollection/pkg/io"
	"github.com/matzehuels/omecollection/pkg/render/nodelink"
)

// Output formats of the render command.
const (
	formatDOT = "dot"
	formatSVG = "svg"
	formatPDF = "pdf"
	formatPNG = "png"
)

var renderFormats = []string{formatDOT, formatSVG, formatPDF, formatPNG}

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string  // output file path
	format   string  // dot, svg, pdf or png
	detailed bool    // image id, category and origin in node labels
	scale    float64 // PNG scale factor
}

// renderCommand draws a collection document as a graph of collections,
// images and source edges.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{scale: 2}

	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Render a collection document as a graph",
		Long: `Render draws collections as clusters and images as nodes, with an edge from
every image to each image it is derived from. Labels are drawn dashed.

DOT output needs nothing else; SVG uses an embedded Graphviz; PDF and PNG
also need rsvg-convert on the PATH. Without --format the format follows
the output file extension, falling back to SVG.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := resolveFormat(opts.format, opts.output)
			if err != nil {
				return err
			}
			w, err := ocio.ImportJSON(args[0])
			if err != nil {
				return err
			}

			dot := nodelink.ToDOT(w, nodelink.Options{Detailed: opts.detailed})
			var data []byte
			ctx := cmd.Context()
			switch format {
			case formatDOT:
				data = []byte(dot)
			case formatSVG:
				data, err = nodelink.RenderSVG(ctx, dot)
			case formatPDF:
				data, err = nodelink.RenderPDF(ctx, dot)
			case formatPNG:
				data, err = nodelink.RenderPNG(ctx, dot, opts.scale)
			}
			if err != nil {
				return err
			}
			c.Logger.Debug("rendered", "format", format, "bytes", len(data))

			return c.writeOutput(opts.output, func(out io.Writer) error {
				_, err := out.Write(data)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: "+strings.Join(renderFormats, ", "))
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show image id, category and origin in nodes")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")

	return cmd
}

// resolveFormat picks the render format from the flag or, failing that,
// the output file extension.
func resolveFormat(format, output string) (string, error) {
	if format == "" {
		switch ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), "."); ext {
		case "":
			return formatSVG, nil
		case "gv":
			return formatDOT, nil
		default:
			format = ext
		}
	}
	for _, f := range renderFormats {
		if f == format {
			return f, nil
		}
	}
	return "", cerrors.New(cerrors.ErrCodeInvalidInput,
		"unknown format %q (want one of %s)", format, strings.Join(renderFormats, ", "))
}
