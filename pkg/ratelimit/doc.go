// Package ratelimit throttles image fetches.
//
// Page navigation is paced by fixed courtesy sleeps in the crawler and
// downloader. Image requests go straight to the CDN over HTTP, so they share
// a token bucket instead:
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
