// Package resilience keeps the notify service's outbound links to Postgres
// and Redis alive and bounds how much load the service accepts.
//
//   - Retry and RetryFunc re-run an operation with exponential backoff and
//     jitter; with MaxAttempts set to Unlimited they drive reconnect loops
//     that only end with their context.
//   - CircuitBreaker fails fast while a dependency keeps failing so callers
//     can fall back, e.g. to local delivery when the Redis relay is down.
//   - Bulkhead caps concurrent use of a resource, e.g. open event streams.
package resilience
