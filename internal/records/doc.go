// Package records persists the outcome of every processed (student, course)
// pair in the certificados_generados table.
//
// Store is the repository the pipeline depends on. The SQLite implementation in
// this package is the default; gormstore serves MySQL and Postgres. Both
// enforce the same invariants at the database level:
//
//   - codigo_unico is globally unique (nullable so failed rows need no code)
//   - (student_id, course_id) has at most one row, so at most one completed row
//   - a completed row is never downgraded by MarkFailed or Claim
//
// Claim moves a pair into processing atomically so two overlapping runs
// cannot both issue a certificate for the same pair, even without the run lock.
package records
