package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cirruslabs/openapi-regen/internal/config"
	"github.com/cirruslabs/openapi-regen/pkg/generator/docker"
	"github.com/cirruslabs/openapi-regen/pkg/pipeline"
	"github.com/cirruslabs/openapi-regen/pkg/specsource"
	"github.com/cirruslabs/openapi-regen/pkg/stats"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	properties []string
}

func newGenerateOptions(cfg *config.Config) *generateOptions {
	opts := &generateOptions{}
	for key, value := range cfg.AdditionalProperties {
		opts.properties = append(opts.properties, key+"="+value)
	}
	return opts
}

func (o *generateOptions) bindFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.StringVar(&cfg.SpecPath, "spec", cfg.SpecPath, "OpenAPI document: path, file://, s3:// or http(s):// URL")
	flags.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory, must not exist yet")
	flags.StringVar(&cfg.Language, "language", cfg.Language, "Generator target language")
	flags.StringVar(&cfg.Image, "image", cfg.Image, "Generator container image")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Maximum time the generator may run")
	flags.BoolVar(&cfg.RunAsInvoker, "run-as-invoker", cfg.RunAsInvoker, "Run the generator container as the current uid:gid")
	flags.StringArrayVar(&o.properties, "additional-property", o.properties, "Generator additional property as key=value (repeatable)")
	flags.StringArrayVar(&cfg.GeneratorArgs, "generator-arg", cfg.GeneratorArgs, "Extra argument passed to the generator (repeatable)")
	flags.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "AWS region for s3:// specifications")
	flags.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "S3 endpoint override (e.g. https://s3.example.com)")
	flags.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print per-stage statistics to stdout when the run ends")
}

func (o *generateOptions) apply(cfg *config.Config) error {
	properties := make(map[string]string, len(o.properties))
	for _, pair := range o.properties {
		key, value, err := config.ParseProperty(pair)
		if err != nil {
			return err
		}
		properties[key] = value
	}
	cfg.AdditionalProperties = properties
	return cfg.Validate()
}

func runGenerate(ctx context.Context, cfg *config.Config, stdout, output io.Writer) error {
	p, err := newPipeline(cfg, output)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx)
	stats.Default().LogSummary()
	if cfg.Stats {
		fmt.Fprint(stdout, stats.Default().SummaryText())
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "openapi-regen finished", "run", result.RunID, "output", result.Workspace)
	return nil
}

func newPipeline(cfg *config.Config, output io.Writer) (*pipeline.Pipeline, error) {
	specs, err := specsource.NewResolver(specsource.Config{
		WorkDir:    cfg.WorkDir,
		S3Region:   cfg.S3Region,
		S3Endpoint: cfg.S3Endpoint,
	})
	if err != nil {
		return nil, err
	}

	generator, err := newGenerator(cfg, output)
	if err != nil {
		return nil, err
	}

	escalator, err := newEscalator(cfg, output)
	if err != nil {
		return nil, err
	}

	// Reject paths the container can't see before anything is created.
	outputDir := resolveOutputDir(specs.WorkDir(), cfg.OutputDir)
	if err := generator.Mounted(outputDir); err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if specPath, ok := specs.LocalPath(cfg.SpecPath); ok {
		if err := generator.Mounted(specPath); err != nil {
			return nil, fmt.Errorf("specification: %w", err)
		}
	}

	return pipeline.New(pipeline.Config{
		SpecRef:              cfg.SpecPath,
		OutputDir:            outputDir,
		Language:             cfg.Language,
		Image:                cfg.Image,
		AdditionalProperties: cfg.AdditionalProperties,
		ExtraArgs:            cfg.GeneratorArgs,
		Timeout:              cfg.Timeout,
		Generator:            generator,
		Specs:                specs,
		Normalizer:           pipeline.NewNormalizer(pipeline.NormalizerConfig{Escalator: escalator}),
	})
}

func newGenerator(cfg *config.Config, output io.Writer) (*docker.Generator, error) {
	var user string
	if cfg.RunAsInvoker {
		user = docker.InvokingUser()
	}

	return docker.New(docker.Config{
		WorkDir: cfg.WorkDir,
		Image:   cfg.Image,
		User:    user,
		Output:  output,
	})
}

func newEscalator(cfg *config.Config, output io.Writer) (pipeline.Escalator, error) {
	switch cfg.Escalation {
	case config.EscalationSudo:
		return pipeline.SudoEscalator{}, nil
	case config.EscalationContainer:
		return docker.ContainerEscalator{Image: cfg.EscalatorImage, Output: output}, nil
	case config.EscalationNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown escalation %q", cfg.Escalation)
	}
}

func resolveOutputDir(workDir, outputDir string) string {
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" || filepath.IsAbs(outputDir) {
		return outputDir
	}
	return filepath.Join(workDir, outputDir)
}
