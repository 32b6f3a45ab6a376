package pipeline

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// partitionOf maps a shard key (session_id or product_id) to one of n
// partitions. The mapping is stable across runs.
func partitionOf(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}

// forEachPartition runs fn once per partition concurrently and returns the
// first error. fn must only write to state owned by its partition.
func forEachPartition(ctx context.Context, n int, fn func(ctx context.Context, part int) error) error {
	if n < 1 {
		n = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for part := 0; part < n; part++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, part)
		})
	}
	return g.Wait()
}
