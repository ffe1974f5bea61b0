// Package pipeline orchestrates certificate issuance.
//
// Each candidate moves through received, rendering, assembling, uploading,
// and recording, ending done or failed. Pre-checks in the received state skip
// candidates that already hold a certificate, have exhausted their attempts,
// or are claimed by another run. Every attempt gets a private workspace that
// is removed on every path.
//
// Failures are classified with the services error taxonomy, recorded through
// the record store's MarkFailed, and never abort the batch. A batch processes
// at most config.MaxBatchLimit candidates sequentially; RunOnce additionally
// holds the run lock and pulls candidates from the configured feed.
package pipeline
