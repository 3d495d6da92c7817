// internal/cli/root.go
package cli

import (
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// errIssuesFound makes validate exit non-zero without printing usage.
var errIssuesFound = errors.New("issues at or above the failure threshold")

type options struct {
	configPath string
	dataDir    string
	noColor    bool
	cfg        *Config
}

// NewRootCmd builds the storyctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{cfg: DefaultConfig()}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	root := &cobra.Command{
		Use:   "storyctl",
		Short: "Inspect and tidy branching stories offline",
		Long: Brand.Sprint("storyctl") + " checks, lays out, renders and converts story files\n" +
			Subtle.Sprint("A story is either a path to a .json file or a story id under --data-dir"),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if opts.noColor || !cfg.UI.Color {
				color.NoColor = true
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", DefaultConfigPath(), "config file")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", dataDir, "server data directory for story ids")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colour output")

	root.AddCommand(
		validateCmd(opts),
		unusedCmd(opts),
		layoutCmd(opts),
		renderCmd(opts),
		fmtCmd(opts),
		importCmd(opts),
	)
	return root
}

// Execute runs storyctl and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errIssuesFound) {
			Bad.Fprintf(os.Stderr, "storyctl: %v\n", err)
		}
		return 1
	}
	return 0
}
