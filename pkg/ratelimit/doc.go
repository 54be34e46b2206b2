// Package ratelimit paces item advances during a crawl.
//
// The crawl removes one item from the live timeline per advance; removing
// them too quickly makes the site stream in new items faster than they render
// and raises the chance of the "Try reloading" banner. A sliding window caps
// advances per rolling minute:
//
//	limiter := ratelimit.PerMinute(cfg.Crawl.ItemsPerMinute)
//	if limiter != nil {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	}
package ratelimit
