package io

// Submits work units to the worker pool. Implementations are driven from the owner goroutine only.
type Producer interface {
	// Queues the unit, returns false once the producer is closed
	Produce(unit *WorkUnit) bool

	// Hands queued units to the pool without blocking, returns how many are still queued
	Flush() int

	Pending() int

	// Closes the work channel: consumers exit after draining it
	Close()
}
