// Package api defines the wire-format types of the daemon control API and the
// converters from internal pipeline, record, and staging models.
//
// # Key Types
//
// BatchSummary: one batch run with per-candidate outcomes.
//
// ScheduleResponse: next scheduled run and the last batch summary.
//
// Certificate/CertificateListResponse: persisted certificate rows.
//
// HealthResponse: stage readiness plus staging directory usage.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds in
// UTC; zero times are omitted. Durations are reported in milliseconds.
package api
