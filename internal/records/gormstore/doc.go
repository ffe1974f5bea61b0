// Package gormstore implements records.Store on gorm for MySQL and Postgres.
//
// MySQL is the database the LMS already runs on, so the table lives next to
// the LMS tables under the configured prefix and is brought up to date with
// gorm's AutoMigrate. Postgres deployments get versioned migrations applied by
// golang-migrate from the embedded migrations/postgres directory.
package gormstore
