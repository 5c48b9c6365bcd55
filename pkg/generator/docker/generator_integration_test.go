package docker_test

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cirruslabs/openapi-regen/internal/testutil"
	"github.com/cirruslabs/openapi-regen/pkg/generator/docker"
	"github.com/cirruslabs/openapi-regen/pkg/pipeline"
	"github.com/stretchr/testify/require"
)

func TestGenerateRustClientIntegration(t *testing.T) {
	testutil.RequireDocker(t)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Minute)
	t.Cleanup(cancel)

	workDir := t.TempDir()
	testutil.WriteSpec(t, workDir, "openai.yaml")

	var logs bytes.Buffer
	generator, err := docker.New(docker.Config{
		WorkDir: workDir,
		User:    docker.InvokingUser(),
		Output:  &logs,
	})
	require.NoError(t, err)

	p, err := pipeline.New(pipeline.Config{
		SpecRef:   filepath.Join(workDir, "openai.yaml"),
		OutputDir: filepath.Join(workDir, "openai"),
		Language:  "rust",
		Generator: generator,
	})
	require.NoError(t, err)

	result, err := p.Run(ctx)
	require.NoError(t, err, "generator output:\n%s", logs.String())
	require.Equal(t, pipeline.StateDone, result.State)
	require.Positive(t, result.Artifacts.Files)

	err = filepath.WalkDir(result.Workspace, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if d.Type().IsRegular() {
			info, err := d.Info()
			require.NoError(t, err)
			require.Equal(t, fs.FileMode(0o666), info.Mode().Perm()&0o666, path)
		}
		return nil
	})
	require.NoError(t, err)

	_, err = p.Run(ctx)
	require.ErrorIs(t, err, pipeline.ErrWorkspaceCollision)
}

func TestGenerateFailsOnUnknownLanguageIntegration(t *testing.T) {
	testutil.RequireDocker(t)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Minute)
	t.Cleanup(cancel)

	workDir := t.TempDir()
	specPath := testutil.WriteSpec(t, workDir, "openai.yaml")
	outputDir := filepath.Join(workDir, "openai")
	require.NoError(t, os.Mkdir(outputDir, 0o755))

	generator, err := docker.New(docker.Config{
		WorkDir: workDir,
		User:    docker.InvokingUser(),
		Output:  &bytes.Buffer{},
	})
	require.NoError(t, err)

	err = generator.Generate(ctx, pipeline.Invocation{
		SpecPath:  specPath,
		OutputDir: outputDir,
		Language:  "not-a-language",
	})
	require.ErrorIs(t, err, pipeline.ErrGeneratorInvocationFailure)

	code, ok := pipeline.ExitCode(err)
	require.True(t, ok)
	require.NotZero(t, code)
}

func TestContainerEscalatorIntegration(t *testing.T) {
	testutil.RequireDocker(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(file, []byte("pub mod apis;\n"), 0o600))

	escalator := docker.ContainerEscalator{}
	require.NoError(t, escalator.Widen(t.Context(), dir))

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o666), info.Mode().Perm())
}
