package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mb2os/multiboot"
)

// NewDumpCmd returns a new instance of the dump subcommand and appends it to
// the root command.
func NewDumpCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "dump FILE...",
		Short: "Parse boot information dumps and print their contents",
		Long: "Parse boot information dumps and print their contents.\n\n" +
			"Each FILE holds a raw copy of the boot information area as left by the\n" +
			"bootloader, or its hex encoding when --hex is set. Use - to read stdin.",
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ReadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			// Flags are valid at this point; do not print usage on parse errors
			cmd.SilenceUsage = true
			return runDump(cfg, cmd.InOrStdin(), os.Stdout, args)
		},
	}
	root.AddCommand(c)
	c.Flags().Var(newEnumFlag(outputFormats, formatText), "format", "Output format ("+strings.Join(outputFormats, ",")+")")
	c.Flags().Uint32("magic", multiboot.BootloaderMagic, "Bootloader magic value to validate against")
	c.Flags().Bool("hex", false, "Input files contain hex encoded data")
	return c
}

// register the subcommand into rootCmd
var _ = NewDumpCmd(rootCmd)

// runDump parses every source and writes the reports of the ones that parsed
// successfully. Parse failures are collected and returned together.
func runDump(cfg *Config, stdin io.Reader, out io.Writer, sources []string) error {
	var (
		errs    *multierror.Error
		reports []*Report
	)

	for _, source := range sources {
		blob, err := readBlob(stdin, source, cfg.Hex)
		if err != nil {
			cfg.Logger.Errorf("reading %s: %v", source, err)
			errs = multierror.Append(errs, fmt.Errorf("reading %s: %w", source, err))
			continue
		}
		cfg.Logger.Debugf("read %d bytes from %s", len(blob), source)

		// Reports reference strings stored in the list, so each source
		// gets its own.
		list := new(multiboot.InformationList)

		if perr := multiboot.ParseBytes(cfg.Magic, blob, list); perr != nil {
			cfg.Logger.Errorf("parsing %s: %v", source, perr)
			errs = multierror.Append(errs, fmt.Errorf("parsing %s: %w", source, perr))
			continue
		}
		cfg.Logger.Debugf("parsed %d tags from %s", list.Len(), source)

		reports = append(reports, NewReport(source, list))
	}

	if err := writeReports(out, cfg.Format, reports); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("writing report: %w", err))
	}

	return errs.ErrorOrNil()
}

func readBlob(stdin io.Reader, source string, isHex bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	if source == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	if !isHex {
		return data, nil
	}

	return hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
}
