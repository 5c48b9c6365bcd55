package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cirruslabs/openapi-regen/pkg/specsource"
	"github.com/cirruslabs/openapi-regen/pkg/stats"
	"github.com/google/uuid"
)

const DefaultTimeout = 10 * time.Minute

// Invocation describes a single generator run. Paths are absolute host paths.
type Invocation struct {
	SpecPath             string
	OutputDir            string
	Language             string
	Image                string
	AdditionalProperties map[string]string
	ExtraArgs            []string
}

// Generator produces client sources for inv.Language from inv.SpecPath into
// inv.OutputDir. Implementations return ErrExecutionEnvironmentUnavailable
// when they cannot start at all and ErrGeneratorInvocationFailure (or a
// *GeneratorExitError) when the generator itself fails.
type Generator interface {
	Generate(ctx context.Context, inv Invocation) error
}

type Config struct {
	SpecRef              string
	OutputDir            string
	Language             string
	Image                string
	AdditionalProperties map[string]string
	ExtraArgs            []string
	Timeout              time.Duration

	Generator  Generator
	Specs      *specsource.Resolver
	Normalizer *Normalizer
	Stats      *stats.Collector
	Logger     *slog.Logger
}

type Pipeline struct {
	specRef              string
	outputDir            string
	language             string
	image                string
	additionalProperties map[string]string
	extraArgs            []string
	timeout              time.Duration

	generator  Generator
	specs      *specsource.Resolver
	normalizer *Normalizer
	stats      *stats.Collector
	logger     *slog.Logger
}

type Result struct {
	RunID     string
	State     State
	Workspace string
	Artifacts ArtifactTree
	Durations map[Stage]time.Duration
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("pipeline generator is nil")
	}

	specRef := strings.TrimSpace(cfg.SpecRef)
	if specRef == "" {
		return nil, fmt.Errorf("specification reference is empty")
	}
	outputDir := strings.TrimSpace(cfg.OutputDir)
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		return nil, fmt.Errorf("target language is empty")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < 0 {
		return nil, fmt.Errorf("generator timeout must be positive, got %s", timeout)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	specs := cfg.Specs
	if specs == nil {
		var err error
		specs, err = specsource.NewResolver(specsource.Config{Logger: logger})
		if err != nil {
			return nil, err
		}
	}

	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = NewNormalizer(NormalizerConfig{Logger: logger})
	}

	collector := cfg.Stats
	if collector == nil {
		collector = stats.Default()
	}

	return &Pipeline{
		specRef:              specRef,
		outputDir:            outputDir,
		language:             language,
		image:                strings.TrimSpace(cfg.Image),
		additionalProperties: cfg.AdditionalProperties,
		extraArgs:            cfg.ExtraArgs,
		timeout:              timeout,
		generator:            cfg.Generator,
		specs:                specs,
		normalizer:           normalizer,
		stats:                collector,
		logger:               logger,
	}, nil
}

// Run executes prepare, invoke and normalize in order and stops at the first
// failure. Nothing created by earlier steps is rolled back.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		State:     StateStart,
		Durations: make(map[Stage]time.Duration, 3),
	}
	logger := p.logger.With("run", result.RunID)

	var workspace *Workspace
	err := p.step(ctx, logger, result, StagePrepare, func() error {
		var err error
		workspace, err = PrepareWorkspace(p.outputDir)
		return err
	})
	if err != nil {
		return result, err
	}
	result.Workspace = workspace.Path
	result.State = StateWorkspacePrepared

	err = p.step(ctx, logger, result, StageInvoke, func() error {
		tree, err := p.invoke(ctx, logger, workspace)
		result.Artifacts = tree
		return err
	})
	if err != nil {
		return result, err
	}
	result.State = StateInvoked

	err = p.step(ctx, logger, result, StageNormalize, func() error {
		return p.normalizer.Normalize(ctx, workspace.Path)
	})
	if err != nil {
		return result, err
	}
	result.State = StateNormalized

	p.stats.RecordArtifacts(result.Artifacts.Files, result.Artifacts.Dirs, result.Artifacts.Bytes)
	result.State = StateDone
	logger.InfoContext(ctx, "client regenerated",
		"output", result.Workspace,
		"files", result.Artifacts.Files,
		"dirs", result.Artifacts.Dirs,
	)

	return result, nil
}

func (p *Pipeline) step(ctx context.Context, logger *slog.Logger, result *Result, stage Stage, fn func() error) error {
	logger.DebugContext(ctx, "stage started", "stage", stage)

	started := time.Now()
	err := fn()
	elapsed := time.Since(started)

	result.Durations[stage] = elapsed
	p.stats.RecordStage(string(stage), elapsed, err == nil)

	if err != nil {
		result.State = StateFailed
		logger.ErrorContext(ctx, "stage failed", "stage", stage, "err", err)
		return &StageError{Stage: stage, Err: err}
	}

	logger.InfoContext(ctx, "stage finished", "stage", stage, "duration", elapsed.Round(time.Millisecond))
	return nil
}

func (p *Pipeline) invoke(ctx context.Context, logger *slog.Logger, workspace *Workspace) (ArtifactTree, error) {
	doc, err := p.specs.Resolve(ctx, p.specRef)
	if err != nil {
		return ArtifactTree{}, fmt.Errorf("%w: resolve specification: %w", ErrGeneratorInvocationFailure, err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			logger.Warn("failed to remove staged specification", "path", doc.Path, "err", err)
		}
	}()
	if doc.Staged() {
		logger.DebugContext(ctx, "using staged specification", "ref", doc.Ref, "path", doc.Path)
	}

	inv := Invocation{
		SpecPath:             doc.Path,
		OutputDir:            workspace.Path,
		Language:             p.language,
		Image:                p.image,
		AdditionalProperties: p.additionalProperties,
		ExtraArgs:            p.extraArgs,
	}

	invokeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logger.InfoContext(ctx, "invoking generator", "spec", doc.Ref, "language", inv.Language, "output", inv.OutputDir)
	if err := p.generator.Generate(invokeCtx, inv); err != nil {
		return ArtifactTree{}, classifyGeneratorError(invokeCtx, p.timeout, err)
	}

	// Directories alone don't make a client.
	tree, err := InventoryTree(workspace.Path)
	if err != nil {
		return tree, fmt.Errorf("%w: inventory output directory: %w", ErrGeneratorInvocationFailure, err)
	}
	if tree.Empty() {
		return tree, fmt.Errorf("%w: generator produced no output files in %s", ErrGeneratorInvocationFailure, workspace.Path)
	}
	return tree, nil
}

func classifyGeneratorError(ctx context.Context, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out after %s: %w", ErrGeneratorInvocationFailure, timeout, err)
	}
	if errors.Is(err, ErrExecutionEnvironmentUnavailable) || errors.Is(err, ErrGeneratorInvocationFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGeneratorInvocationFailure, err)
}
