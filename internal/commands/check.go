package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/cirruslabs/openapi-regen/internal/config"
	"github.com/cirruslabs/openapi-regen/pkg/generator/docker"
	"github.com/cirruslabs/openapi-regen/pkg/pipeline"
	"github.com/spf13/cobra"
)

type checker interface {
	Check(ctx context.Context) error
}

func newCheckCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the container runtime and privilege escalation are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks, err := environmentChecks(cfg)
			if err != nil {
				return err
			}
			return runChecks(cmd, checks)
		},
	}
}

type namedCheck struct {
	name    string
	checker checker
}

func environmentChecks(cfg *config.Config) ([]namedCheck, error) {
	if !cfg.Escalation.Valid() {
		return nil, fmt.Errorf("unknown escalation %q", cfg.Escalation)
	}

	generator, err := docker.New(docker.Config{WorkDir: cfg.WorkDir})
	if err != nil {
		return nil, err
	}
	checks := []namedCheck{{name: "docker", checker: generator}}

	switch cfg.Escalation {
	case config.EscalationSudo:
		checks = append(checks, namedCheck{name: "sudo", checker: pipeline.SudoEscalator{}})
	case config.EscalationContainer:
		checks = append(checks, namedCheck{name: "container escalation", checker: docker.ContainerEscalator{Image: cfg.EscalatorImage}})
	}
	return checks, nil
}

func runChecks(cmd *cobra.Command, checks []namedCheck) error {
	var errs []error
	for _, check := range checks {
		if err := check.checker.Check(cmd.Context()); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: FAIL (%v)\n", check.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", check.name, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", check.name)
	}
	return errors.Join(errs...)
}
