package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/omecollection/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// Global flags:
//   - --verbose (-v): debug logging, overriding the configured level
//   - --config: configuration file (default $XDG_CONFIG_HOME/omecollection/config.toml)
//   - --store, --dsn: override the configured store backend and location
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "omecollection converts OME collection trees to flat records and back",
		Long: `omecollection validates OME collection documents, converts them to the flat
per-image records stored as key-value annotations, rebuilds trees from those
records, and moves collections in and out of an annotation store.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&c.configPath, "config", "", "configuration file")
	flags.StringVar(&c.backend, "store", "", "store backend (memory, file, sqlite, redis, mongo)")
	flags.StringVar(&c.dsn, "dsn", "", "store location: path, address or URI")

	// Local documents
	root.AddCommand(c.flattenCommand())
	root.AddCommand(c.unflattenCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.recordsCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.renderCommand())

	// Annotation store
	root.AddCommand(c.uploadCommand())
	root.AddCommand(c.downloadCommand())
	root.AddCommand(c.deleteCommand())
	root.AddCommand(c.serveCommand())

	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}
