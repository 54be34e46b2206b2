// Package retry provides retry policies for transient failures while driving
// the timeline and calling the embedding service.
//
// A policy is an explicit *Config value: total attempts, a backoff strategy
// and a predicate selecting which errors are retried.
//
//	// Wait for the front item: 5 attempts, 2s apart, timeouts only
//	cfg := retry.Fixed(5, 2*time.Second, retry.OnlyType(errs.ErrorTypeTimeout))
//	cfg.Context = ctx
//	cfg.Logger = log
//	err := retry.Do(func() error { return feed.Next(ctx) }, cfg)
//
// DefaultRetryIf retries typed errors whose type is retryable (timeout,
// extraction, browser) and never retries context cancellation. When attempts
// are exhausted the last error is returned wrapped, so errors.As and IsType
// still see its type.
package retry
