// Package resource implements the resource controller shared by the replicas
// of an index.
//
// The Controller governs three resources:
//
//   - Memory: bucket slots reserved during fit are accounted against an
//     optional hard limit (non-blocking, fail-fast)
//   - Workers: bounds how many replicas are fitted or queried concurrently
//   - Queries: optional token-bucket admission rate for KNeighbours
//
// # Memory Management
//
// AcquireMemory is non-blocking and returns ErrMemoryLimitExceeded at once
// when the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20,
//	})
//
//	if err := rc.AcquireMemory(entryBytes); err != nil {
//	    // ErrMemoryLimitExceeded - stop loading
//	}
//
// # Worker Limits
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
