// Package speculative runs an optimistic local change alongside the
// authoritative request that confirms or refutes it.
package speculative

import (
	"context"
)

// Op describes one speculative change. Apply makes the local change and may
// refuse with an error, in which case nothing else runs. Reconcile commits
// the server's answer; Rollback undoes Apply after a failed Request. Finally
// runs after Apply succeeded, whatever the outcome.
type Op[R any] struct {
	Apply     func() error
	Request   func(ctx context.Context) (R, error)
	Reconcile func(R)
	Rollback  func(err error)
	Finally   func()
}

func Execute[R any](ctx context.Context, op Op[R]) (R, error) {
	var zero R
	if op.Apply != nil {
		if err := op.Apply(); err != nil {
			return zero, err
		}
	}
	if op.Finally != nil {
		defer op.Finally()
	}

	res, err := op.Request(ctx)
	if err != nil {
		if op.Rollback != nil {
			op.Rollback(err)
		}
		return zero, err
	}
	if op.Reconcile != nil {
		op.Reconcile(res)
	}
	return res, nil
}
