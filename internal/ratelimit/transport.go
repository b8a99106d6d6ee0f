// Package ratelimit paces outgoing API requests with an in-process token bucket.
package ratelimit

import (
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// slowWait is the wait above which a throttled request is logged.
const slowWait = 250 * time.Millisecond

// Transport waits for a token before every request. The wait honours the
// request context, so a cancelled run stops queueing immediately.
type Transport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewTransport wraps base. A non-positive rps returns base unchanged.
func NewTransport(base http.RoundTripper, rps float64, log *zap.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if rps <= 0 {
		return base
	}
	if log == nil {
		log = zap.NewNop()
	}
	burst := int(math.Max(1, math.Ceil(rps)))
	return &Transport{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log.Named("ratelimit"),
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	if waited := time.Since(started); waited > slowWait {
		t.log.Debug("request throttled",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("waited", waited),
		)
	}
	return t.base.RoundTrip(req)
}

// NewClient returns an HTTP client whose requests are paced at rps.
func NewClient(rps float64, timeout time.Duration, log *zap.Logger) *http.Client {
	return &http.Client{
		Transport: NewTransport(http.DefaultTransport, rps, log),
		Timeout:   timeout,
	}
}
