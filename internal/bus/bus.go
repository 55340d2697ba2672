// Package bus defines the Queue abstraction that stands in for the "local
// sockets" spec.md §5 describes between Intake, the Lane Dispatchers, the
// Collector, and the Worker Pool. See SPEC_FULL.md §0 for the process-model
// decision this package implements: memqueue backs the in-process tiers,
// redisqueue lets the Worker Pool run as genuinely separate OS processes.
package bus

import "context"

// Queue is a typed, named FIFO channel. Push never blocks the caller beyond
// backpressure from the implementation's buffer; Pop blocks until an item is
// available or ctx is done.
type Queue[T any] interface {
	Push(ctx context.Context, item T) error
	Pop(ctx context.Context) (T, error)
	Close() error
}
