// Package preflight provides readiness checks for the filesystem paths and
// external services aegis depends on.
//
// These checks run in two contexts:
//   - The filter and stream commands call RunAll before starting work. If
//     any check fails the command exits instead of failing mid-job.
//   - The CLI "aegis deps" command prints every result as a table.
//
// Each check is gated by the modalities in play; the vision endpoint is not
// contacted when video filtering is off.
package preflight
