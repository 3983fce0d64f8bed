// Package schedule provides utilities for cron expression handling and deferred execution.
//
// Cron functions parse and validate cron expressions and compute upcoming run times.
// RunAt executes a function asynchronously at a specified time and can be stopped
// before it fires. Every runs a function on a cron schedule until its context ends.
package schedule
