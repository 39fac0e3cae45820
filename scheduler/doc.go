// Package scheduler decides when reporting cycles run.
//
// Every work item gets a fresh uuid and consists of one cycle plus its
// retries. Only one cycle is ever in flight. A RetryableFailure is retried
// with exponential backoff, never past the next period. A FatalFailure
// ends a periodic schedule; it needs an operator to fix the configuration.
package scheduler
