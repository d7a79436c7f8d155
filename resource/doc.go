// Package resource bounds the work the vault does at once.
//
// A Controller manages three budgets:
//
//   - Workers: how many archives are encoded or decoded concurrently
//   - Memory: bytes of decoded series held in flight
//   - IO: blob store throughput, as a token bucket
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MaxWorkers:         4,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// All methods are safe for concurrent use. A nil *Controller is valid and
// imposes no limits.
package resource
