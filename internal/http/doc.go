// Package http is the resilient client core: immutable requests, a bounded
// connection pool created on first use, a retry loop with 2^n backoff and
// an ordered error classifier. Calls never return errors; every outcome is
// a Result.
package http
