package xclient

import (
	"golang.org/x/time/rate"
)

// NewLimiter paces outbound API requests; non-positive values fall back to 2 rps, burst 10.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 10
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
