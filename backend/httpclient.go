package backend

import (
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps an *http.Client with a per-backend outbound
// token-bucket limiter, repurposing the teacher's inbound
// ServerConfig.RateLimitRPS/RateLimitBurst knobs (internal/server) to
// cap outbound calls to a single vendor instead of inbound HTTP.
type RateLimitedClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewRateLimitedClient builds a client with the given timeout and an
// outbound rate of rps requests/sec with the given burst. A zero rps
// disables limiting.
func NewRateLimitedClient(timeout time.Duration, rps float64, burst int) *RateLimitedClient {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimitedClient{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Do waits for the rate limiter (if any) then performs the request.
func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return c.client.Do(req)
}

// ReadErrorBody reads and trims an error response body for inclusion
// in a BackendError message, bounding how much we ever buffer.
func ReadErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return string(data)
}
