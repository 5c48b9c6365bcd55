package testutil

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/docker/docker/client"
)

// RequireDocker skips the calling test when Docker isn't reachable or the host
// can't bind-mount Unix paths into Linux containers.
func RequireDocker(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a Unix-like Docker environment")
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
