// Copyright (C) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RunConcurrently starts [workers] goroutines running [f] with their worker
// number, releases them at the same time so they race on whatever shared
// state [f] touches, and returns the first error any of them returned.
func RunConcurrently(ctx context.Context, workers int, f func(ctx context.Context, worker int) error) error {
	var (
		start = make(chan struct{})
		ready sync.WaitGroup
	)
	ready.Add(workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			ready.Done()
			select {
			case <-start:
			case <-ctx.Done():
				return ctx.Err()
			}
			return f(ctx, worker)
		})
	}

	ready.Wait()
	close(start)
	return g.Wait()
}
