package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"mb2os/multiboot"
)

// Output formats supported by the dump command.
const (
	formatText   = "text"
	formatYAML   = "yaml"
	formatJSON   = "json"
	formatLitter = "litter"
)

var outputFormats = []string{formatText, formatYAML, formatJSON, formatLitter}

// Config holds the settings shared by all subcommands. Values are resolved
// from command line flags, MB2DUMP_* environment variables and the optional
// config file, in that order of precedence.
type Config struct {
	Debug  bool   `mapstructure:"debug"`
	Format string `mapstructure:"format"`
	Magic  uint32 `mapstructure:"magic"`
	Hex    bool   `mapstructure:"hex"`
	Output string `mapstructure:"output"`

	Logger *logrus.Logger `mapstructure:"-"`
}

// ReadConfig resolves the configuration for the running command. Log output
// is sent to logOut.
func ReadConfig(logOut io.Writer) (*Config, error) {
	cfg := &Config{
		Format: formatText,
		Magic:  multiboot.BootloaderMagic,
	}

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	// Only pick environment variables starting with MB2DUMP
	viper.SetEnvPrefix("MB2DUMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if !isAllowed(outputFormats, cfg.Format) {
		return nil, fmt.Errorf("unsupported output format '%s', expected one of: %s", cfg.Format, strings.Join(outputFormats, ","))
	}

	cfg.Logger = newLogger(logOut, cfg.Debug)
	return cfg, nil
}

func newLogger(out io.Writer, debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func isAllowed(opts []string, val string) bool {
	for _, opt := range opts {
		if val == opt {
			return true
		}
	}
	return false
}
