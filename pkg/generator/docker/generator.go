package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/cirruslabs/openapi-regen/pkg/pipeline"
	"github.com/samber/lo"
)

const (
	DefaultImage      = "openapitools/openapi-generator-cli:latest"
	DefaultMountPoint = "/local"
)

type Config struct {
	// WorkDir is the host directory mounted into the generator container.
	// Specification and output paths must live below it.
	WorkDir    string
	MountPoint string
	Image      string

	// User is passed to the container as uid:gid. Empty runs as the image's
	// default user.
	User string

	Output io.Writer
	Pinger Pinger
	Logger *slog.Logger
}

// Generator runs an openapi-generator compatible image.
type Generator struct {
	workDir    string
	mountPoint string
	image      string
	user       string
	output     io.Writer
	pinger     Pinger
	logger     *slog.Logger
}

var _ pipeline.Generator = (*Generator)(nil)

func New(cfg Config) (*Generator, error) {
	workDir := strings.TrimSpace(cfg.WorkDir)
	if workDir == "" {
		workDir = "."
	}
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	mountPoint := strings.TrimSpace(cfg.MountPoint)
	if mountPoint == "" {
		mountPoint = DefaultMountPoint
	}
	if !path.IsAbs(mountPoint) {
		return nil, fmt.Errorf("mount point must be absolute, got %q", mountPoint)
	}

	image := strings.TrimSpace(cfg.Image)
	if image == "" {
		image = DefaultImage
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	pinger := cfg.Pinger
	if pinger == nil {
		pinger = DaemonPinger()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		workDir:    absWorkDir,
		mountPoint: mountPoint,
		image:      image,
		user:       strings.TrimSpace(cfg.User),
		output:     output,
		pinger:     pinger,
		logger:     logger,
	}, nil
}

func (g *Generator) Check(ctx context.Context) error {
	if err := g.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrExecutionEnvironmentUnavailable, err)
	}
	return nil
}

func (g *Generator) Generate(ctx context.Context, inv pipeline.Invocation) error {
	if err := g.Check(ctx); err != nil {
		return err
	}

	spec, err := g.plan(inv)
	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrGeneratorInvocationFailure, err)
	}

	g.logger.DebugContext(ctx, "starting generator container", "image", spec.image, "cmd", spec.cmd, "user", spec.user)
	exitCode, err := runToExit(ctx, g.logger, spec, g.output)
	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrGeneratorInvocationFailure, err)
	}
	if exitCode != 0 {
		return &pipeline.GeneratorExitError{ExitCode: exitCode}
	}
	return nil
}

// plan translates inv into the container run without starting anything.
func (g *Generator) plan(inv pipeline.Invocation) (runSpec, error) {
	language := strings.TrimSpace(inv.Language)
	if language == "" {
		return runSpec{}, fmt.Errorf("target language is empty")
	}

	specPath, err := g.containerPath(inv.SpecPath)
	if err != nil {
		return runSpec{}, fmt.Errorf("specification: %w", err)
	}
	outputPath, err := g.containerPath(inv.OutputDir)
	if err != nil {
		return runSpec{}, fmt.Errorf("output directory: %w", err)
	}

	image := strings.TrimSpace(inv.Image)
	if image == "" {
		image = g.image
	}

	spec := runSpec{
		image:      image,
		cmd:        Command(specPath, language, outputPath, inv.AdditionalProperties, inv.ExtraArgs),
		user:       g.user,
		workingDir: g.mountPoint,
		binds:      []string{fmt.Sprintf("%s:%s", g.workDir, g.mountPoint)},
	}
	if spec.user != "" {
		spec.env = map[string]string{"HOME": "/tmp"}
	}
	return spec, nil
}

// Mounted reports an error when hostPath is not visible inside the container.
func (g *Generator) Mounted(hostPath string) error {
	_, err := g.containerPath(hostPath)
	return err
}

func (g *Generator) containerPath(hostPath string) (string, error) {
	hostPath = strings.TrimSpace(hostPath)
	if hostPath == "" {
		return "", fmt.Errorf("path is empty")
	}
	if !filepath.IsAbs(hostPath) {
		hostPath = filepath.Join(g.workDir, hostPath)
	}

	rel, err := filepath.Rel(g.workDir, hostPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the mounted working directory %s", hostPath, g.workDir)
	}
	return path.Join(g.mountPoint, filepath.ToSlash(rel)), nil
}

// Command builds the openapi-generator command line. Additional properties
// are emitted sorted by key.
func Command(specPath, language, outputPath string, additionalProperties map[string]string, extraArgs []string) []string {
	cmd := []string{"generate", "-i", specPath, "-g", language, "-o", outputPath}

	if len(additionalProperties) > 0 {
		keys := lo.Keys(additionalProperties)
		slices.Sort(keys)
		pairs := lo.Map(keys, func(key string, _ int) string {
			return key + "=" + additionalProperties[key]
		})
		cmd = append(cmd, "--additional-properties="+strings.Join(pairs, ","))
	}

	extraArgs = lo.Compact(lo.Map(extraArgs, func(arg string, _ int) string {
		return strings.TrimSpace(arg)
	}))
	return append(cmd, extraArgs...)
}

// InvokingUser returns the current uid:gid, or an empty string where the
// notion doesn't map onto container users.
func InvokingUser() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	return fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
}
