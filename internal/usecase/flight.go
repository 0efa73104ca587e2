package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// doDetached runs fn once per key for all concurrent callers. The shared run is
// detached from any single caller's cancellation and bounded by timeout instead;
// each caller still returns early when its own ctx is done.
func doDetached(ctx context.Context, g *singleflight.Group, key string, timeout time.Duration, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := g.DoChan(key, func() (interface{}, error) {
		runCtx := context.WithoutCancel(ctx)
		if timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, timeout)
			defer cancel()
		}
		return fn(runCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// doOwned runs fn once per key and reports whether this caller was the one that
// ran it. Waiters share the initiator's result, including its cancellation.
func doOwned(ctx context.Context, g *singleflight.Group, key string, fn func() (interface{}, error)) (interface{}, bool, error) {
	ran := false
	ch := g.DoChan(key, func() (interface{}, error) {
		ran = true
		return fn()
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		// The send on ch happens after fn returned, so ran is settled here.
		return res.Val, ran, res.Err
	}
}
