// Package exec implements ChainGraph's Execution Engine (spec §4.4, §4.5,
// §5, §6.1, §6.2, §6.3): the scheduler that drives a flow.Snapshot to
// completion under a concurrency bound, propagates values and streams
// across edges, supports breakpoint/step debugging, enforces per-node and
// whole-flow timeouts, and publishes an ordered event log to subscribers
// and to a store.Store.
//
// One dispatcher goroutine per Execution owns the ready-queue and the
// concurrency semaphore (grounded in the teacher's state-graph stepping
// loop and its semaphore-bounded parallel-node launcher); node bodies run
// on goroutines the dispatcher supervises but never mutates scheduler
// state directly from — they report back over a channel, the same shape
// as the teacher's WaitGroup-plus-results-channel pattern.
package exec
