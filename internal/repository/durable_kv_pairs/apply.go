package durable_kv_pairs

import (
	"context"
	"errors"
	"fmt"

	"github.com/horockey/akv/internal/model"
)

// Apply flushes eff to repo.
// A failed step does not prevent the following ones.
// Done ctx stops the flush before the next step.
func Apply(ctx context.Context, repo Repository, eff model.Effect) error {
	var resErr error

	steps := []func() error{}
	if eff.Clear {
		steps = append(steps, func() error {
			if err := repo.ApplyClear(); err != nil {
				return fmt.Errorf("applying clear: %w", err)
			}
			return nil
		})
	}

	for _, p := range eff.Prefixes {
		steps = append(steps, func() error {
			if err := repo.ApplyDeletePrefix(p); err != nil {
				return fmt.Errorf("applying delete prefix %q: %w", p, err)
			}
			return nil
		})
	}

	if len(eff.Upserts) > 0 {
		steps = append(steps, func() error {
			if err := repo.ApplyUpserts(eff.Upserts); err != nil {
				return fmt.Errorf("applying upserts: %w", err)
			}
			return nil
		})
	}

	if len(eff.Deletes) > 0 {
		steps = append(steps, func() error {
			if err := repo.ApplyDeletes(eff.Deletes); err != nil {
				return fmt.Errorf("applying deletes: %w", err)
			}
			return nil
		})
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return errors.Join(resErr, fmt.Errorf("interrupting flush: %w", err))
		}
		if err := step(); err != nil {
			resErr = errors.Join(resErr, err)
		}
	}

	return resErr
}
