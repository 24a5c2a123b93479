package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/i474232898/weather-bot/internal/geo"
)

// ErrProviderUnavailable is returned when calls to the provider are being
// short-circuited after repeated failures.
var ErrProviderUnavailable = errors.New("weather provider unavailable")

// RequestFailedError is returned when the provider answers with a non-success
// status. Body is kept verbatim for display.
type RequestFailedError struct {
	StatusCode int
	Body       string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Body)
}

// RawForecast mirrors the provider's response body. Only the fields the
// receiver reads are declared.
type RawForecast struct {
	Forecasts []RawDay `json:"forecasts"`
}

// RawDay is one entry of the provider's "forecasts" array. Date is nil when
// the provider omitted it.
type RawDay struct {
	Date  *string                    `json:"date"`
	Parts map[string]json.RawMessage `json:"parts"`
}

type rawPart struct {
	Condition *string `json:"condition"`
}

// Condition returns the condition code of the named day part. A missing part,
// a part that is not an object or one without a condition yields ok=false.
func (d RawDay) Condition(part string) (string, bool) {
	raw, ok := d.Parts[part]
	if !ok {
		return "", false
	}

	var p rawPart
	if err := json.Unmarshal(raw, &p); err != nil || p.Condition == nil {
		return "", false
	}
	return *p.Condition, true
}

// Provider abstracts the remote forecast source.
type Provider interface {
	Name() string
	FetchForecast(ctx context.Context, loc geo.Location) (RawForecast, error)
}
