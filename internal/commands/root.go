package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cirruslabs/openapi-regen/internal/config"
	"github.com/cirruslabs/openapi-regen/internal/version"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cfg, loadErr := config.Load()
	if cfg == nil {
		cfg = &config.Config{}
	}
	opts := newGenerateOptions(cfg)

	cmd := &cobra.Command{
		Use:           "openapi-regen",
		Short:         "Regenerate an API client from an OpenAPI document",
		Version:       version.FullVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if loadErr != nil {
				return loadErr
			}
			return configureLogging(cfg.LogLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.apply(cfg); err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "Directory mounted into the generator container")
	cmd.PersistentFlags().StringVar((*string)(&cfg.Escalation), "escalation", string(cfg.Escalation), "Privilege escalation for permission changes (sudo, container, none)")
	cmd.PersistentFlags().StringVar(&cfg.EscalatorImage, "escalator-image", cfg.EscalatorImage, "Image used by the container escalation")
	opts.bindFlags(cmd, cfg)

	cmd.AddCommand(newCheckCmd(cfg))

	return cmd
}

func configureLogging(level string) error {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
	return nil
}
