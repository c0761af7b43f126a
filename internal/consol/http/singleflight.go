package http

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var tbBuildGroup singleflight.Group

// singleflightBuild collapses concurrent identical report requests into
// one computation. The caller's context still cancels its own wait.
func singleflightBuild(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	resultChan := tbBuildGroup.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
