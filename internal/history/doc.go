// Package history keeps a SQLite journal of file jobs and stream sessions so
// operators can review what was censored after the fact. The journal sits
// outside the pipeline: nothing reads it back during processing.
package history
