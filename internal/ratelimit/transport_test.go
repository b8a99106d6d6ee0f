package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingTransport struct{ calls atomic.Int32 }

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestNewTransportWithoutRateReturnsBase(t *testing.T) {
	base := &countingTransport{}
	assert.Same(t, base, NewTransport(base, 0, nil))
}

func TestTransportStopsQueueingOnCancel(t *testing.T) {
	base := &countingTransport{}
	rt := NewTransport(base, 0.001, zap.NewNop())

	req, err := http.NewRequest(http.MethodGet, "http://stripe.test/v1/prices", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = rt.RoundTrip(req.WithContext(ctx))
	assert.Error(t, err)
	assert.Equal(t, int32(1), base.calls.Load())
}

func TestNewClientPacesRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(50, time.Second, nil)
	started := time.Now()
	for range 60 {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, int32(60), hits.Load())
	// 50 burst tokens, the remaining 10 refill at 50/s.
	assert.GreaterOrEqual(t, time.Since(started), 150*time.Millisecond)
}
