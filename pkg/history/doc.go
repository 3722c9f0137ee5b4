// Package history builds a short daily exchange-rate series from an upstream
// that only serves the latest rates.
//
// The upstream is queried once per day in the window, oldest day first, with a
// minimum pause between sub-requests so a single history call cannot burst the
// upstream quota. Each sub-request has its own timeout.
//
// Example usage:
//
//	sampler := history.NewSampler(source, history.DefaultConfig())
//	rates, err := sampler.Sample(ctx, "USD", "EUR", 7, time.Now())
//
// The sampler:
//   - Labels each sample with the date of the day it stands for (YYYY-MM-DD, UTC)
//   - Paces sub-requests with a token bucket (default 100ms apart)
//   - Skips days whose sub-request fails instead of failing the whole series
//   - Returns ErrNoSamples when every day failed
package history
