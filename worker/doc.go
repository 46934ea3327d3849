// Package worker provides the bounded pool that executes render attempts.
//
// A Pool owns a fixed number of executor slots. Each slot holds its own
// render.Worker and drains a shared pending queue. Submissions never block
// the caller: Submit appends to the queue and returns immediately, and the
// queue depth is observable via QueueDepth. Completed runs are handed back
// through a completion callback registered at construction time.
package worker
