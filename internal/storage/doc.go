// Package storage is the relational persistence layer of the planner.
//
// It supports:
//   - sqlite (default, pure Go driver; write transactions take the database lock up front)
//   - postgres (pgx; structural edits lock task and chunk rows with SELECT ... FOR UPDATE)
//
// Durations are stored as integer hundredths of an hour and days as ISO dates,
// so aggregates are exact and comparable on both backends.
package storage
