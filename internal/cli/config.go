package cli

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/sheetflow/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
		Long: fmt.Sprintf(`Show or initialize the sheetflow configuration.

Settings come from %s (or --config), then from the environment:
  %s, %s, %s, %s, %s`,
			config.DefaultFileName,
			config.EnvDatabase, config.EnvLogLevel, config.EnvLogFormat,
			config.EnvWorkers, config.EnvPollInterval),
	}
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
			}
			if f.JSON() {
				return f.Success(cfg)
			}
			b, err := toml.Marshal(cfg)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
			}
			_, err = f.Writer.Write(b)
			return err
		},
	}
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:           "init [path]",
		Short:         "Write a default configuration file",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			path := config.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			}

			cfg := config.Default()
			if rootOpts.Database != "" {
				cfg.Database = rootOpts.Database
			}
			if err := config.Save(path, cfg); err != nil {
				return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("write %s: %v", path, err), nil)
			}
			if f.JSON() {
				return f.Success(map[string]any{"path": path, "config": cfg})
			}
			fmt.Fprintf(f.Writer, "✓ Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
