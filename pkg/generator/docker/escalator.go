package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cirruslabs/openapi-regen/pkg/pipeline"
)

const (
	DefaultEscalatorImage = "busybox:latest"
	escalatorMountPoint   = "/target"
)

// ContainerEscalator widens permissions by running chmod as root in a
// throwaway container with the tree bind-mounted. It needs no host privilege
// beyond access to the Docker daemon.
type ContainerEscalator struct {
	Image  string
	Output io.Writer
	Pinger Pinger
	Logger *slog.Logger
}

var _ pipeline.Escalator = ContainerEscalator{}

func (e ContainerEscalator) Name() string {
	return "container"
}

func (e ContainerEscalator) Check(ctx context.Context) error {
	pinger := e.Pinger
	if pinger == nil {
		pinger = DaemonPinger()
	}
	if err := pinger.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrExecutionEnvironmentUnavailable, err)
	}
	return nil
}

func (e ContainerEscalator) Widen(ctx context.Context, dir string) error {
	if err := e.Check(ctx); err != nil {
		return err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	image := strings.TrimSpace(e.Image)
	if image == "" {
		image = DefaultEscalatorImage
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exitCode, err := runToExit(ctx, logger, runSpec{
		image: image,
		cmd:   []string{"chmod", "-R", "a+rwX", escalatorMountPoint},
		user:  "0:0",
		binds: []string{fmt.Sprintf("%s:%s", absDir, escalatorMountPoint)},
	}, e.Output)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("chmod in %s exited with code %d", image, exitCode)
	}
	return nil
}
