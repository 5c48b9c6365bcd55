package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cirruslabs/openapi-regen/internal/config"
	"github.com/cirruslabs/openapi-regen/pkg/generator/docker"
	"github.com/cirruslabs/openapi-regen/pkg/pipeline"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Check(ctx context.Context) error {
	return f(ctx)
}

func TestRootCmdRejectsArguments(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"openai.yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.ErrorContains(t, err, "unknown command")
}

func TestRootCmdRejectsInvalidLogLevel(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--log-level", "loud"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestRootCmdReportsBadEnvironment(t *testing.T) {
	t.Setenv("OPENAPI_REGEN_TIMEOUT", "soon")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.ErrorContains(t, err, "parse environment")
}

func TestGenerateOptionsApply(t *testing.T) {
	cfg := &config.Config{
		SpecPath:   "openai.yaml",
		OutputDir:  "openai",
		Language:   "rust",
		Timeout:    time.Minute,
		Escalation: config.EscalationNone,
	}
	opts := &generateOptions{properties: []string{"packageName=openai", "library=reqwest"}}

	require.NoError(t, opts.apply(cfg))
	require.Equal(t, map[string]string{"packageName": "openai", "library": "reqwest"}, cfg.AdditionalProperties)

	opts.properties = append(opts.properties, "broken")
	require.ErrorContains(t, opts.apply(cfg), "key=value")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("OPENAPI_REGEN_LANGUAGE", "go")
	t.Setenv("OPENAPI_REGEN_ADDITIONAL_PROPERTIES", "packageName=fromenv")

	cfg, err := config.Load()
	require.NoError(t, err)
	opts := newGenerateOptions(cfg)

	cmd := &cobra.Command{Use: "test"}
	opts.bindFlags(cmd, cfg)
	require.NoError(t, cmd.ParseFlags([]string{
		"--language", "rust",
		"--timeout", "30s",
		"--additional-property", "library=reqwest",
		"--generator-arg", "--skip-validate-spec",
	}))
	require.NoError(t, opts.apply(cfg))

	require.Equal(t, "rust", cfg.Language)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, map[string]string{"library": "reqwest"}, cfg.AdditionalProperties)
	require.Equal(t, []string{"--skip-validate-spec"}, cfg.GeneratorArgs)
}

func TestResolveOutputDir(t *testing.T) {
	require.Equal(t, filepath.Join("/work", "openai"), resolveOutputDir("/work", "openai"))
	require.Equal(t, "/tmp/openai", resolveOutputDir("/work", "/tmp/openai"))
	require.Empty(t, resolveOutputDir("/work", " "))
}

func TestNewEscalator(t *testing.T) {
	escalator, err := newEscalator(&config.Config{Escalation: config.EscalationSudo}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "sudo", escalator.Name())

	escalator, err = newEscalator(&config.Config{Escalation: config.EscalationContainer, EscalatorImage: "alpine:3"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, docker.ContainerEscalator{Image: "alpine:3", Output: io.Discard}, escalator)

	escalator, err = newEscalator(&config.Config{Escalation: config.EscalationNone}, io.Discard)
	require.NoError(t, err)
	require.Nil(t, escalator)

	_, err = newEscalator(&config.Config{Escalation: "doas"}, io.Discard)
	require.Error(t, err)
}

func TestNewPipelineFromConfig(t *testing.T) {
	workDir := t.TempDir()
	cfg := &config.Config{
		WorkDir:    workDir,
		SpecPath:   "openai.yaml",
		OutputDir:  "openai",
		Language:   "rust",
		Timeout:    time.Minute,
		Escalation: config.EscalationNone,
	}

	p, err := newPipeline(cfg, io.Discard)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestNewPipelineRejectsPathsOutsideWorkDir(t *testing.T) {
	workDir := t.TempDir()
	elsewhere := t.TempDir()
	outputDir := filepath.Join(elsewhere, "openai")

	cfg := &config.Config{
		WorkDir:    workDir,
		SpecPath:   "openai.yaml",
		OutputDir:  outputDir,
		Language:   "rust",
		Timeout:    time.Minute,
		Escalation: config.EscalationNone,
	}
	_, err := newPipeline(cfg, io.Discard)
	require.ErrorContains(t, err, "output directory")
	require.ErrorContains(t, err, "outside the mounted working directory")

	_, err = os.Stat(outputDir)
	require.ErrorIs(t, err, fs.ErrNotExist)

	cfg.OutputDir = "openai"
	cfg.SpecPath = "file://" + filepath.Join(elsewhere, "openai.yaml")
	_, err = newPipeline(cfg, io.Discard)
	require.ErrorContains(t, err, "specification")
	require.ErrorContains(t, err, "outside the mounted working directory")

	cfg.SpecPath = "s3://specs/openai.yaml"
	_, err = newPipeline(cfg, io.Discard)
	require.NoError(t, err)
}

func TestRunGeneratePrintsStats(t *testing.T) {
	cfg := &config.Config{
		WorkDir:    t.TempDir(),
		SpecPath:   "missing.yaml",
		OutputDir:  "openai",
		Language:   "rust",
		Timeout:    time.Minute,
		Escalation: config.EscalationNone,
		Stats:      true,
	}

	var stdout bytes.Buffer
	err := runGenerate(t.Context(), cfg, &stdout, io.Discard)
	require.ErrorIs(t, err, pipeline.ErrGeneratorInvocationFailure)
	require.Contains(t, stdout.String(), "openapi-regen stats\n")
	require.Contains(t, stdout.String(), "invoke generator: runs=")

	stdout.Reset()
	cfg.Stats = false
	cfg.OutputDir = "openai-quiet"
	err = runGenerate(t.Context(), cfg, &stdout, io.Discard)
	require.Error(t, err)
	require.Empty(t, stdout.String())
}

func TestEnvironmentChecks(t *testing.T) {
	checks, err := environmentChecks(&config.Config{WorkDir: t.TempDir(), Escalation: config.EscalationSudo})
	require.NoError(t, err)
	require.Len(t, checks, 2)
	require.Equal(t, "docker", checks[0].name)
	require.Equal(t, pipeline.SudoEscalator{}, checks[1].checker)

	checks, err = environmentChecks(&config.Config{WorkDir: t.TempDir(), Escalation: config.EscalationNone})
	require.NoError(t, err)
	require.Len(t, checks, 1)

	_, err = environmentChecks(&config.Config{Escalation: "doas"})
	require.Error(t, err)
}

func TestRunChecksReportsEveryFailure(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(t.Context())

	dockerErr := errors.New("cannot connect")
	err := runChecks(cmd, []namedCheck{
		{name: "docker", checker: checkerFunc(func(context.Context) error { return dockerErr })},
		{name: "sudo", checker: checkerFunc(func(context.Context) error { return nil })},
	})
	require.ErrorIs(t, err, dockerErr)
	require.Equal(t, "docker: FAIL (cannot connect)\nsudo: ok\n", out.String())
}
