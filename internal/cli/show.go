package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	ocio "github.com/matzehuels/omecollection/pkg/io"
)

// showCommand prints a collection document as a tree.
func (c *CLI) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show FILE",
		Short: "Print a collection document as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ocio.ImportJSON(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Out, collectionTree(w.OME))
			return nil
		},
	}
}

// recordsCommand prints the flat records of a collection document as a table.
func (c *CLI) recordsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "records FILE",
		Short: "Print the flat records of a collection document as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ocio.ImportJSON(args[0])
			if err != nil {
				return err
			}
			records := w.OME.Flatten()
			if len(records) == 0 {
				printInfo(c.Out, "%s has no images", w.OME.Name)
				return nil
			}
			fmt.Fprintln(c.Out, recordTable(records))
			return nil
		},
	}
}

// browseCommand opens an interactive leaf browser.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse FILE",
		Short: "Browse the images of a collection document interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ocio.ImportJSON(args[0])
			if err != nil {
				return err
			}
			return runBrowser(cmd.Context(), NewLeafListModel(w.OME))
		},
	}
}

func runBrowser(ctx context.Context, m LeafListModel) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}
