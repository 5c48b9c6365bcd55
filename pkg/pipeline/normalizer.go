package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const specialModeBits = fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

// Escalator widens permissions on a whole tree with elevated privilege. It is
// used once the invoking user turns out not to own part of the tree.
type Escalator interface {
	Name() string
	Widen(ctx context.Context, dir string) error
}

type NormalizerConfig struct {
	Escalator Escalator
	Logger    *slog.Logger
}

type Normalizer struct {
	escalator Escalator
	logger    *slog.Logger

	chmod func(name string, mode fs.FileMode) error
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Normalizer{
		escalator: cfg.Escalator,
		logger:    logger,
		chmod:     os.Chmod,
	}
}

// Normalize applies a+rwX to every directory and regular file under root,
// root included. Symlinks are neither followed nor changed.
func (n *Normalizer) Normalize(ctx context.Context, root string) error {
	denied, err := n.widenTree(ctx, root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermissionChangeFailure, err)
	}
	if denied == "" {
		return nil
	}

	if n.escalator == nil {
		return fmt.Errorf("%w: %s: permission denied and no escalation configured", ErrPermissionChangeFailure, denied)
	}

	n.logger.InfoContext(ctx, "escalating permission change", "dir", root, "escalator", n.escalator.Name(), "deniedAt", denied)
	if err := n.escalator.Widen(ctx, root); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPermissionChangeFailure, n.escalator.Name(), err)
	}
	return nil
}

// widenTree returns the first path whose mode could not be changed because of
// insufficient privilege, or an error for any other failure.
func (n *Normalizer) widenTree(ctx context.Context, root string) (string, error) {
	var denied string

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				denied = path
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		mode := info.Mode()
		widened := widenMode(mode)
		if widened == mode&(fs.ModePerm|specialModeBits) {
			return nil
		}

		if err := n.chmod(path, widened); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				denied = path
				return fs.SkipAll
			}
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		return nil
	})

	return denied, walkErr
}

func widenMode(mode fs.FileMode) fs.FileMode {
	perm := mode.Perm()
	if mode.IsDir() {
		perm |= 0o777
	} else {
		perm |= 0o666
		if perm&0o111 != 0 {
			perm |= 0o111
		}
	}
	return perm | mode&specialModeBits
}
