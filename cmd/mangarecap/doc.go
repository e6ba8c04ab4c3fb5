// Package main hosts the mangarecap CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the provider
// registry, cache and checkpoint stores, and hands chapters to the batch
// scheduler. Maintenance commands inspect and clear the cache and
// checkpoints of a run directory, list provider chains, and scaffold
// configuration.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// surfaced here through commands and flags.
package main
