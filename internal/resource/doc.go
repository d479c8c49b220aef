// Package resource bounds the shared resources of a search run.
//
//   - Workers: a weighted semaphore limits concurrent prefix expansions
//   - Memory: an atomic counter of cache bytes with an advisory ceiling
//   - IO: a token bucket throttles persistence uploads
//
// The memory ceiling never fails an allocation. The driver polls
// MemoryExceeded before expanding a prefix and defers the expansion instead,
// so every layer still satisfies its accounting identity.
//
//	rc := resource.NewController(resource.Config{
//	    MaxWorkers:         4,
//	    MemoryLimitBytes:   1 << 30,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// All methods handle a nil Controller gracefully: they become no-ops, so
// callers can make resource limits optional without nil checks.
package resource
