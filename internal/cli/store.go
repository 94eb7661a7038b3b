package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/omecollection/pkg/collection"
	ocio "github.com/matzehuels/omecollection/pkg/io"
)

// uploadCommand stores a collection document as annotations and prints the
// new collection id.
func (c *CLI) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a collection document to the annotation store",
		Long: `Upload validates a collection document, creates a collection annotation,
links it to every image, and attaches one node annotation per image holding
the image's flat record. The new collection id is printed on stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := ocio.ImportJSON(args[0])
			if err != nil {
				return err
			}

			tr, s, err := c.openTransfer(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			prog := newProgress(c.Logger)
			spin := newSpinner(ctx, c.Err, fmt.Sprintf("Uploading %s...", w.OME.Name))
			spin.Start()
			id, err := tr.Upload(ctx, w)
			spin.Stop()
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Uploaded %s as collection %d", plural(len(w.OME.Leaves()), "image"), id))

			fmt.Fprintln(c.Out, id)
			return nil
		},
	}
}

// downloadCommand rebuilds a stored collection.
func (c *CLI) downloadCommand() *cobra.Command {
	var (
		output  string
		records bool
	)

	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Download a collection from the annotation store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			tr, s, err := c.openTransfer(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			prog := newProgress(c.Logger)
			spin := newSpinner(ctx, c.Err, "Downloading collection "+strconv.FormatInt(id, 10)+"...")
			spin.Start()
			w, err := tr.Download(ctx, id)
			spin.Stop()
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Downloaded %s (%s)", w.OME.Name, plural(len(w.OME.Leaves()), "image")))

			return c.writeOutput(output, func(out io.Writer) error {
				if records {
					return ocio.WriteRecords(collection.Flatten(w), out)
				}
				return ocio.WriteJSON(w, out)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&records, "records", false, "write flat records instead of the tree")
	return cmd
}

// deleteCommand removes a stored collection and its node annotations.
func (c *CLI) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a collection and its node annotations from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			tr, s, err := c.openTransfer(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			removed, err := tr.Delete(ctx, id)
			if err != nil {
				return err
			}
			printSuccess(c.Out, "Deleted collection %d and %s", id, plural(removed, "node annotation"))
			return nil
		},
	}
}
