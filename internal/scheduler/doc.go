// Package scheduler triggers periodic jobs (cron, interval, daily HH:MM).
//
// It is used to run "advance all active series" on a schedule. Jobs run on
// their own goroutine with a timeout; a trigger that fires while the
// previous run of the same job is still in flight is skipped.
package scheduler
