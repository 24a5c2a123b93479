package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/weather-bot/internal/geo"
	"github.com/i474232898/weather-bot/internal/store"
	"github.com/i474232898/weather-bot/internal/weather"
)

const serviceName = "weather-bot"

var validate = validator.New()

// Forecaster resolves a forecast for a point.
type Forecaster interface {
	RequestWeather(ctx context.Context, loc geo.Location) (weather.ParsedForecast, error)
}

// StorageProbe reports whether the location registry has a live connection.
type StorageProbe interface {
	Available() bool
}

type Deps struct {
	Forecasts Forecaster
	// Storage may be nil for backends that are always available.
	Storage StorageProbe
	// Cache may be nil to always hit the provider.
	Cache          *store.MemoryStore
	RequestTimeout time.Duration
}

// NewApp builds the ops HTTP app with middleware and routes.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	RegisterRoutes(app, deps)
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 15 * time.Second
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		storage := "up"
		code := fiber.StatusOK
		if deps.Storage != nil && !deps.Storage.Available() {
			storage = "down"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
			"storage": storage,
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		q, err := parsePointQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := q.toLocation()
		if deps.Cache != nil {
			if cached, err := deps.Cache.GetForecast(loc); err == nil {
				return c.JSON(forecastResponse(loc, cached, true))
			}
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), deps.RequestTimeout)
		defer cancel()

		forecast, err := deps.Forecasts.RequestWeather(ctx, loc)
		if err != nil {
			var reqErr *weather.RequestFailedError
			if errors.As(err, &reqErr) || errors.Is(err, weather.ErrProviderUnavailable) {
				return fiber.NewError(fiber.StatusBadGateway, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast")
		}

		if deps.Cache != nil {
			deps.Cache.SaveForecast(loc, forecast)
		}
		return c.JSON(forecastResponse(loc, forecast, false))
	})
}

func forecastResponse(loc geo.Location, forecast weather.ParsedForecast, cached bool) fiber.Map {
	return fiber.Map{
		"location": loc,
		"forecast": forecast,
		"text":     forecast.String(),
		"cached":   cached,
	}
}

// pointQuery holds query parameters for identifying a location.
type pointQuery struct {
	Lat string `validate:"required,latitude"`
	Lon string `validate:"required,longitude"`
}

func (q pointQuery) toLocation() geo.Location {
	// Both values passed validation, so they parse.
	lat, _ := strconv.ParseFloat(q.Lat, 64)
	lon, _ := strconv.ParseFloat(q.Lon, 64)
	return geo.Location{Lat: lat, Lon: lon}
}

func parsePointQuery(c *fiber.Ctx) (pointQuery, error) {
	var q pointQuery

	q.Lat = c.Query("lat")
	q.Lon = c.Query("lon")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}
