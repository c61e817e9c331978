// Package scheduler fires the cleanup sweep on a cron schedule and records
// the outcome of the last run.
package scheduler
