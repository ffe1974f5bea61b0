// Package daemon coordinates the long-running certissuer process.
//
// It wires the pipeline, the record store, the cron scheduler, and the HTTP
// control API into a single lifecycle with flock-based locking to prevent
// multiple instances on one host. Manual triggers and scheduled triggers both
// go through the pipeline's run lock, so they never overlap.
//
// Keep orchestration logic here: batch semantics live in internal/pipeline and
// schedule parsing in internal/scheduler.
package daemon
