package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-bot/internal/geo"
	"github.com/i474232898/weather-bot/internal/weather"
)

// YandexProvider implements weather.Provider for the Yandex Weather forecast API.
type YandexProvider struct {
	name    string
	apiKey  string
	baseURL string
	lang    string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewYandexProvider(client *http.Client, baseURL, lang, apiKey string) *YandexProvider {
	return &YandexProvider{
		name:    "yandex",
		apiKey:  apiKey,
		baseURL: baseURL,
		lang:    lang,
		client:  client,
		circuit: newCircuitBreaker("yandex"),
	}
}

func (p *YandexProvider) Name() string {
	return p.name
}

func (p *YandexProvider) FetchForecast(ctx context.Context, loc geo.Location) (weather.RawForecast, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u, err := url.Parse(p.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse %s url: %w", p.name, err)
		}

		values := u.Query()
		values.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
		values.Set("lang", p.lang)
		u.RawQuery = values.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Yandex-API-Key", p.apiKey)
		return req, nil
	}

	body, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.RawForecast{}, err
	}

	var payload weather.RawForecast
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.RawForecast{}, fmt.Errorf("decode %s forecast: %w", p.name, err)
	}
	return payload, nil
}
