package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewBuildCmd returns a new instance of the build subcommand and appends it to
// the root command.
func NewBuildCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "build DESCRIPTION",
		Short: "Build a boot information blob from a YAML description",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ReadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			return runBuild(cfg, args[0])
		},
	}
	root.AddCommand(c)
	c.Flags().StringP("output", "o", "bootinfo.bin", "Output file")
	return c
}

// register the subcommand into rootCmd
var _ = NewBuildCmd(rootCmd)

func runBuild(cfg *Config, descFile string) error {
	spec, err := readSpecFile(descFile)
	if err != nil {
		return err
	}
	cfg.Logger.Debugf("building %d tags from %s", len(spec.Tags), descFile)

	blob, err := spec.Build()
	if err != nil {
		return fmt.Errorf("%s: %w", descFile, err)
	}

	if err = os.WriteFile(cfg.Output, blob, 0o644); err != nil {
		return err
	}

	cfg.Logger.Infof("wrote %d bytes (%d tags) to %s", len(blob), len(spec.Tags), cfg.Output)
	return nil
}

func readSpecFile(descFile string) (*BlobSpec, error) {
	f, err := os.Open(descFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	spec, err := ReadBlobSpec(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", descFile, err)
	}
	return spec, nil
}
