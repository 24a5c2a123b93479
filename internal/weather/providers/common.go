package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-bot/internal/weather"
)

// maxBodySize caps how much of a provider response is read into memory.
const maxBodySize = 4 << 20

var errNoHTTPClient = errors.New("http client not configured")

// newCircuitBreaker trips after consecutive failures so a provider outage
// answers users immediately instead of one timeout per request.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         name,
		MaxRequests:  1,
		Interval:     1 * time.Minute,
		Timeout:      30 * time.Second,
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("provider circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	})
}

// countsAsHealthy keeps client errors from tripping the breaker: a 4xx answer
// means the provider is up.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var reqErr *weather.RequestFailedError
	return errors.As(err, &reqErr) && reqErr.StatusCode < http.StatusInternalServerError
}

// doRequest executes a single attempt of the request through the circuit
// breaker and returns the body of a 200 response. Any other status yields a
// *weather.RequestFailedError carrying the body.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, err
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, &weather.RequestFailedError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return body, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}
