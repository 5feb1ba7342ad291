package engine

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/domain"
)

// GridKernel executes per-cell work over the compact index range.  Dispatch must not
// return until every cell has been processed, so callers can treat it as a barrier.
type GridKernel interface {
	domain.Dispatcher

	// Name identifies the kernel in logs and server info.
	Name() string
}

// SerialKernel runs all cells on the calling goroutine.
type SerialKernel struct{}

func (SerialKernel) Name() string { return "serial" }

func (SerialKernel) Dispatch(n int, fn func(lo, hi int)) error {
	if n > 0 {
		fn(0, n)
	}
	return nil
}

// PoolKernel splits the index range into chunks processed by a bounded set of goroutines.
type PoolKernel struct {
	// Workers is the maximum number of chunks processed at once.
	Workers int

	// ChunkSize is the number of cells per chunk.  If zero, the range is cut into
	// about four chunks per worker.
	ChunkSize int
}

// NewPoolKernel returns a kernel using the given number of workers, or cardio.NumCPU
// if workers is not positive.
func NewPoolKernel(workers int) *PoolKernel {
	if workers <= 0 {
		workers = cardio.NumCPU
	}
	return &PoolKernel{Workers: workers}
}

func (k *PoolKernel) Name() string {
	return fmt.Sprintf("pool (%d workers)", k.Workers)
}

func (k *PoolKernel) chunkSize(n int) int {
	if k.ChunkSize > 0 {
		return k.ChunkSize
	}
	parts := 4 * k.Workers
	if parts < 1 {
		parts = 1
	}
	size := (n + parts - 1) / parts
	if size < 1 {
		size = 1
	}
	return size
}

func (k *PoolKernel) Dispatch(n int, fn func(lo, hi int)) error {
	if n <= 0 {
		return nil
	}
	var g errgroup.Group
	if k.Workers > 0 {
		g.SetLimit(k.Workers)
	}
	chunk := k.chunkSize(n)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > n {
			hi = n
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("grid kernel panic on cells [%d,%d): %v\n%s", lo, hi, r, debug.Stack())
				}
			}()
			fn(lo, hi)
			return nil
		})
	}
	return g.Wait()
}
