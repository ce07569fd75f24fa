// Package main hosts the aegis CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, structured logging and the
// run journal into the internal packages: "filter" censors a whole file,
// "stream" replays a file as live chunks through the stream orchestrator,
// and "deps", "history" and "config" cover operations around them.
//
// Keep this package lean: add behaviour to the internal packages first and
// surface it here through flags.
package main
