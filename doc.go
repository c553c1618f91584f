// Package dagflow is a durable, concurrent execution engine for DAG
// workflows whose nodes are arbitrary asynchronous units of work.
//
// A Workflow is an immutable graph of node functions connected by typed
// edges (sequential, conditional, parallel, loop). An Execution advances a
// frontier of runnable nodes iteration by iteration: each batch runs under a
// bounded concurrency cap against an immutable state snapshot, partial state
// updates are merged deterministically after the batch, and progress can be
// checkpointed to a pluggable store and resumed later.
//
// Fault-tolerance primitives live in sub-packages: retry (backoff with
// jitter), breaker (circuit breaking keyed per operation), saga
// (compensation/rollback), dlq (dead-letter capture) and idempotency
// (operation deduplication). They compose around node functions; the engine
// itself never imposes them.
package dagflow
