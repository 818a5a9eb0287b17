package client

import (
	"context"
	"fmt"
	"net/url"

	"glasscast/internal/models"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherClient wraps the OpenWeatherMap current-weather and
// 5-day/3-hour forecast endpoints. All readings are requested in metric
// units.
type OpenWeatherClient struct {
	*BaseClient
	apiKey  string
	baseURL string
}

func NewOpenWeatherClient(apiKey string, config ClientConfig, logger *zap.Logger) *OpenWeatherClient {
	baseClient := NewBaseClient("openweather", config, logger)
	return &OpenWeatherClient{
		BaseClient: baseClient,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
}

// SetBaseURL overrides the provider endpoint, used by tests.
func (c *OpenWeatherClient) SetBaseURL(u string) {
	c.baseURL = u
}

// CurrentByCoords fetches current weather for a coordinate pair.
func (c *OpenWeatherClient) CurrentByCoords(ctx context.Context, lat, lon float64) (*models.CurrentResponse, error) {
	u := fmt.Sprintf("%s/weather?lat=%g&lon=%g&appid=%s&units=metric", c.baseURL, lat, lon, c.apiKey)

	var response models.CurrentResponse
	if err := c.GetJSON(ctx, u, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch current weather: %w", err)
	}
	return &response, nil
}

// CurrentByCity fetches current weather by free-text city name.
func (c *OpenWeatherClient) CurrentByCity(ctx context.Context, city string) (*models.CurrentResponse, error) {
	u := fmt.Sprintf("%s/weather?q=%s&appid=%s&units=metric", c.baseURL, url.QueryEscape(city), c.apiKey)

	var response models.CurrentResponse
	if err := c.GetJSON(ctx, u, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch current weather: %w", err)
	}
	return &response, nil
}

// Forecast fetches the 5-day forecast at 3-hour resolution.
func (c *OpenWeatherClient) Forecast(ctx context.Context, lat, lon float64) (*models.ForecastResponse, error) {
	u := fmt.Sprintf("%s/forecast?lat=%g&lon=%g&appid=%s&units=metric", c.baseURL, lat, lon, c.apiKey)

	var response models.ForecastResponse
	if err := c.GetJSON(ctx, u, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}
	return &response, nil
}

// Search resolves a free-text query by attempting a current-weather lookup
// for it. OpenWeatherMap has no real search endpoint, so any failure is
// reported as "no results" rather than an error.
func (c *OpenWeatherClient) Search(ctx context.Context, query string) ([]*models.CurrentResponse, error) {
	weather, err := c.CurrentByCity(ctx, query)
	if err != nil {
		c.logger.Debug("City lookup returned no results",
			zap.String("query", query),
			zap.Error(err))
		return []*models.CurrentResponse{}, nil
	}
	return []*models.CurrentResponse{weather}, nil
}
