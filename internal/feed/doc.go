// Package feed supplies eligible candidates to the pipeline.
//
// The lms source runs the Tutor LMS quiz-attempt query against the WordPress
// database: one row per student/course pair, taken from the best-scoring
// attempt at or above the passing threshold (latest date among equal best
// scores). The file source reads a JSON array of candidate records and serves
// manual runs and tests.
//
// Both sources page in a deterministic order (assessment date, student,
// course) so callers can walk past rows they decide to skip.
package feed
