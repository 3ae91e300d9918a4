package jobs

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a configured worker count; zero or negative means GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// ParallelRange splits s into disjoint batches of at most batch elements and
// runs fn on each from a pool of at most workers goroutines. base is the
// index of chunk[0] in s. Each element belongs to exactly one chunk, so fn may
// write its chunk without synchronization. It returns once every chunk is done.
func ParallelRange[T any](s []T, batch, workers int, fn func(base int, chunk []T)) {
	n := len(s)
	if n == 0 {
		return
	}
	if batch <= 0 {
		batch = 1
	}
	if n <= batch {
		fn(0, s)
		return
	}

	var g errgroup.Group
	g.SetLimit(Workers(workers))
	for start := 0; start < n; start += batch {
		end := min(start+batch, n)
		base, chunk := start, s[start:end:end]
		g.Go(func() error {
			fn(base, chunk)
			return nil
		})
	}
	_ = g.Wait()
}

// ParallelFor calls fn for every index in [0, n) from a bounded pool, in
// batches of at most batch indices.
func ParallelFor(n, batch, workers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if batch <= 0 {
		batch = 1
	}

	var g errgroup.Group
	g.SetLimit(Workers(workers))
	for start := 0; start < n; start += batch {
		end := min(start+batch, n)
		lo, hi := start, end
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
