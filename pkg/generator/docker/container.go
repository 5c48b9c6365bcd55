package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	terminateTimeout = 10 * time.Second
	logsTimeout      = 30 * time.Second
	pingTimeout      = 5 * time.Second
)

// Pinger reports whether the container runtime can accept work.
type Pinger interface {
	Ping(ctx context.Context) error
}

type daemonPinger struct{}

func (daemonPinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker daemon: %w", err)
	}
	return nil
}

// DaemonPinger pings the daemon configured through the DOCKER_HOST family of
// environment variables.
func DaemonPinger() Pinger {
	return daemonPinger{}
}

type runSpec struct {
	image      string
	cmd        []string
	user       string
	workingDir string
	env        map[string]string
	binds      []string
}

// runToExit starts a container, waits for it to exit, copies its logs to
// output and returns the exit code. The container is always removed.
func runToExit(ctx context.Context, logger *slog.Logger, spec runSpec, output io.Writer) (int, error) {
	exitStrategy := wait.ForExit()
	if deadline, ok := ctx.Deadline(); ok {
		exitStrategy = exitStrategy.WithExitTimeout(time.Until(deadline))
	}

	request := testcontainers.ContainerRequest{
		Image:      spec.image,
		Cmd:        spec.cmd,
		User:       spec.user,
		WorkingDir: spec.workingDir,
		Env:        spec.env,
		HostConfigModifier: func(hostConfig *dockercontainer.HostConfig) {
			hostConfig.Binds = append(hostConfig.Binds, spec.binds...)
		},
		WaitingFor: exitStrategy,
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: request,
		Started:          true,
	})
	defer terminate(logger, container)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, errors.Join(ctxErr, err)
		}
		return 0, fmt.Errorf("run %s: %w", spec.image, err)
	}

	copyLogs(logger, container, output)

	state, err := container.State(ctx)
	if err != nil {
		return 0, fmt.Errorf("inspect %s: %w", spec.image, err)
	}
	if state.Running {
		return 0, fmt.Errorf("%s is still running", spec.image)
	}

	return state.ExitCode, nil
}

func copyLogs(logger *slog.Logger, container testcontainers.Container, output io.Writer) {
	if output == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), logsTimeout)
	defer cancel()

	logs, err := container.Logs(ctx)
	if err != nil {
		logger.Warn("failed to read container logs", "err", err)
		return
	}
	defer logs.Close()

	if _, err := io.Copy(output, logs); err != nil {
		logger.Warn("failed to copy container logs", "err", err)
	}
}

func terminate(logger *slog.Logger, container testcontainers.Container) {
	if container == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), terminateTimeout)
	defer cancel()

	if err := container.Terminate(ctx); err != nil {
		logger.Warn("failed to terminate container", "err", err)
	}
}
