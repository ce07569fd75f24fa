// Package workerpool provides a generic bounded worker pool that resolves
// failed jobs to empty results instead of propagating them, so one bad input
// never stalls the queue.
package workerpool
