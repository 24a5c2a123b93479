package weather

import (
	"context"
	"log/slog"

	"github.com/i474232898/weather-bot/internal/geo"
)

// Receiver fetches forecasts from a provider and reduces them to the
// precipitation-only view shown to users.
type Receiver struct {
	provider   Provider
	translator *Translator
}

// NewReceiver creates a new Receiver.
func NewReceiver(provider Provider, translator *Translator) *Receiver {
	return &Receiver{
		provider:   provider,
		translator: translator,
	}
}

// RequestWeather issues one provider request for loc and parses the result.
func (r *Receiver) RequestWeather(ctx context.Context, loc geo.Location) (ParsedForecast, error) {
	raw, err := r.provider.FetchForecast(ctx, loc)
	if err != nil {
		slog.Warn("forecast request failed", "provider", r.provider.Name(), "location", loc.String(), "error", err)
		return ParsedForecast{}, err
	}

	parsed := Parse(raw, r.translator)
	slog.Debug("forecast parsed", "provider", r.provider.Name(), "days", len(parsed.Days), "until", parsed.UntilDate)
	return parsed, nil
}

// Parse translates raw. Entries without a date are skipped. UntilDate is the
// date of the last dated entry, whether or not that entry kept any parts.
func Parse(raw RawForecast, t *Translator) ParsedForecast {
	var parsed ParsedForecast

	for _, day := range raw.Forecasts {
		if day.Date == nil {
			continue
		}
		parsed.UntilDate = *day.Date

		parts := t.TranslateDay(day)
		if len(parts) == 0 {
			continue
		}
		parsed.Days = append(parsed.Days, DayForecast{Date: *day.Date, Parts: parts})
	}

	return parsed
}
