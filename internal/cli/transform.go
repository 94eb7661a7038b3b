package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/omecollection/pkg/collection"
	ocio "github.com/matzehuels/omecollection/pkg/io"
)

// flattenCommand converts a collection document to its flat records.
func (c *CLI) flattenCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "flatten FILE",
		Short: "Convert a collection document to flat per-image records",
		Long: `Flatten reads an {"ome": {...}} document, validates it, and writes one
record per image in depth-first order. Each record carries the image's
attributes under their dotted keys plus its slash-joined path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ocio.ImportJSON(args[0])
			if err != nil {
				return err
			}
			records := w.OME.Flatten()
			c.Logger.Debug("flattened", "collection", w.OME.Name, "records", len(records))
			return c.writeOutput(output, func(out io.Writer) error {
				return ocio.WriteRecords(records, out)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// unflattenCommand rebuilds a collection document from flat records.
func (c *CLI) unflattenCommand() *cobra.Command {
	var (
		output  string
		name    string
		version string
	)

	cmd := &cobra.Command{
		Use:   "unflatten FILE",
		Short: "Rebuild a collection document from flat records",
		Long: `Unflatten reads a JSON array of flat records and rebuilds the tree they
describe. Intermediate collections are created from the path segments;
records keep their order among siblings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := ocio.ImportRecords(args[0])
			if err != nil {
				return err
			}
			w, err := collection.Unflatten(records, name, version)
			if err != nil {
				return err
			}
			return c.writeOutput(output, func(out io.Writer) error {
				return ocio.WriteJSON(w, out)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&name, "name", "", "collection name (required)")
	cmd.Flags().StringVar(&version, "version", collection.DefaultVersion, "collection schema version")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// validateCommand checks a collection document and, optionally, that every
// source reference resolves to an image.
func (c *CLI) validateCommand() *cobra.Command {
	var sources bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a collection document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ocio.ImportJSON(args[0])
			if err != nil {
				return err
			}
			if sources {
				if err := w.OME.CheckSources(); err != nil {
					return err
				}
			}

			leaves := w.OME.Leaves()
			labels := 0
			for _, l := range leaves {
				if l.Node.IsLabel() {
					labels++
				}
				if sources {
					continue
				}
				if _, unresolved := w.OME.ResolveSources(l.Path); len(unresolved) > 0 {
					printWarning(c.Out, "%s: unresolved source %s", l.Path, strings.Join(unresolved, ", "))
				}
			}

			printSuccess(c.Out, "%s is valid", StyleTitle.Render(w.OME.Name))
			printKeyValue(c.Out, "version", w.OME.Version)
			printKeyValue(c.Out, "images", strconv.Itoa(len(leaves)))
			printKeyValue(c.Out, "labels", strconv.Itoa(labels))
			return nil
		},
	}

	cmd.Flags().BoolVar(&sources, "sources", false, "also check that source references resolve")
	return cmd
}

// writeOutput runs write against path, or against c.Out when path is empty
// or "-".
func (c *CLI) writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(c.Out)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	printFile(c.Err, path)
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
