// Package registry owns the two artifacts that make up the source registry: the
// registry document, a single JSON object mapping every source identifier to its
// configuration, and the module directory holding one extraction module per source.
//
// A source is healthy when both artifacts agree: the document has an entry for the
// identifier and the module file <modulesDir>/<id><ext> exists. Registration writes
// the configuration first and the module second, so the only inconsistent state a
// failure can leave behind is an orphan: a configuration entry whose module is
// missing. Orphans are never overwritten by a later registration. They are reported
// by Check and resolved explicitly with Repair or Discard.
//
// # Locking
//
// Every mutation runs under a registry lock made of an in-process semaphore and a
// gofrs/flock file lock on <document>.lock, so the server and the CLI can operate on
// the same registry concurrently. Lock acquisition is retried with exponential
// backoff and gives up with ErrRegistryBusy once the configured timeout elapses.
//
// # Intent markers
//
// Before the document is written, Register records an intent marker under
// <stateDir>/intents/<id>.json. The marker is removed once the module is written. A
// marker that outlives its registration identifies the orphan as one this process
// created, which is what makes automatic rollback by the auditor safe.
//
// # Extraction modules
//
// Module text is opaque here: it is size-checked by the caller and written verbatim.
// The aggregation service build compiles each module into a getter that returns
// news items shaped as {id, title, url, extra}. Nothing in this package loads or
// executes a module.
package registry
