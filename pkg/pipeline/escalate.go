package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const widenSymbolicMode = "a+rwX"

// SudoEscalator runs chmod through non-interactive sudo.
type SudoEscalator struct {
	// Path to the sudo binary; looked up in PATH when empty.
	Path string
}

func (s SudoEscalator) Name() string {
	return "sudo"
}

func (s SudoEscalator) Widen(ctx context.Context, dir string) error {
	return s.run(ctx, "chmod", "-R", widenSymbolicMode, dir)
}

// Check verifies sudo can run without prompting for a password.
func (s SudoEscalator) Check(ctx context.Context) error {
	return s.run(ctx, "true")
}

func (s SudoEscalator) run(ctx context.Context, args ...string) error {
	sudo := strings.TrimSpace(s.Path)
	if sudo == "" {
		var err error
		sudo, err = exec.LookPath("sudo")
		if err != nil {
			return fmt.Errorf("locate sudo: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, sudo, append([]string{"-n"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("sudo %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}
