package services

import (
	"context"
	"sort"
	"time"
	"unicode"

	"glasscast/internal/models"
	"glasscast/internal/widget"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxHourlyEntries = 24
	maxForecastDays  = 10
	hourlyWindow     = 24 * time.Hour
	unknownCondition = "Unknown"
)

// WeatherAPI is the slice of the provider client the services need.
type WeatherAPI interface {
	CurrentByCoords(ctx context.Context, lat, lon float64) (*models.CurrentResponse, error)
	CurrentByCity(ctx context.Context, city string) (*models.CurrentResponse, error)
	Forecast(ctx context.Context, lat, lon float64) (*models.ForecastResponse, error)
	Search(ctx context.Context, query string) ([]*models.CurrentResponse, error)
}

// WeatherView is the merged display model for one location: current
// conditions plus the 24-hour and up-to-10-day forecasts.
type WeatherView struct {
	Current models.WeatherSnapshot `json:"current"`
	Hourly  []models.ForecastHour  `json:"hourly"`
	Daily   []models.ForecastDay   `json:"daily"`
}

// Aggregator runs the paired current+forecast fetch and merges the results.
// On success it also refreshes the widget snapshot slot; that side effect is
// fire-and-forget and never fails the foreground fetch.
type Aggregator struct {
	client WeatherAPI
	bridge *widget.SnapshotBridge
	signal func()
	logger *zap.Logger
	now    func() time.Time
}

func NewAggregator(client WeatherAPI, bridge *widget.SnapshotBridge, signal func(), logger *zap.Logger) *Aggregator {
	return &Aggregator{
		client: client,
		bridge: bridge,
		signal: signal,
		logger: logger,
		now:    time.Now,
	}
}

// Fetch issues the current-weather and forecast requests concurrently; both
// must succeed, and the first error encountered fails the whole operation.
func (a *Aggregator) Fetch(ctx context.Context, lat, lon float64) (*WeatherView, error) {
	var (
		current  *models.CurrentResponse
		forecast *models.ForecastResponse
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = a.client.CurrentByCoords(gCtx, lat, lon)
		return err
	})
	g.Go(func() error {
		var err error
		forecast, err = a.client.Forecast(gCtx, lat, lon)
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.Error("Weather fetch failed",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err))
		return nil, err
	}

	now := a.now()
	view := &WeatherView{
		Current: SnapshotFromCurrent(current),
		Hourly:  buildHourly(forecast.List, now),
		Daily:   buildDaily(forecast.List),
	}

	a.publishWidgetSnapshot(view.Current)

	return view, nil
}

// publishWidgetSnapshot updates the widget slot and pokes the refresher.
// Failures are logged and swallowed.
func (a *Aggregator) publishWidgetSnapshot(snapshot models.WeatherSnapshot) {
	if a.bridge == nil {
		return
	}
	if err := a.bridge.Save(snapshot); err != nil {
		a.logger.Warn("Failed to save widget snapshot", zap.Error(err))
		return
	}
	if a.signal != nil {
		a.signal()
	}
}

// SnapshotFromCurrent builds the display snapshot from a current-weather
// response. The first weather-condition entry wins; a missing entry falls
// back to placeholders rather than failing the pipeline.
func SnapshotFromCurrent(resp *models.CurrentResponse) models.WeatherSnapshot {
	condition := unknownCondition
	description := ""
	icon := ""
	if len(resp.Weather) > 0 {
		w := resp.Weather[0]
		condition = w.Main
		description = capitalize(w.Description)
		icon = w.Icon
	}

	return models.WeatherSnapshot{
		CityName:    resp.Name,
		Country:     resp.Sys.Country,
		Temperature: resp.Main.Temp,
		Condition:   condition,
		Description: description,
		Icon:        icon,
		High:        resp.Main.TempMax,
		Low:         resp.Main.TempMin,
		Humidity:    resp.Main.Humidity,
		Coordinates: resp.Coord,
	}
}

// buildHourly filters the 3-hour entries to the [now, now+24h) window,
// chronological, capped at 24.
func buildHourly(entries []models.ForecastEntry, now time.Time) []models.ForecastHour {
	hours := make([]models.ForecastHour, 0, maxHourlyEntries)
	cutoff := now.Add(hourlyWindow)

	for _, entry := range entries {
		t := time.Unix(entry.Dt, 0)
		if t.Before(now) || !t.Before(cutoff) {
			continue
		}
		if len(hours) >= maxHourlyEntries {
			break
		}

		hour := models.ForecastHour{
			Time:        t,
			Temperature: entry.Main.Temp,
			Condition:   unknownCondition,
		}
		if len(entry.Weather) > 0 {
			hour.Condition = entry.Weather[0].Main
			hour.Icon = entry.Weather[0].Icon
		}
		hours = append(hours, hour)
	}

	return hours
}

// buildDaily groups the 3-hour entries by local calendar day. Each day's
// high is the max of the contributing highs and its low the min of the
// lows; the day's first entry supplies condition and icon. The result is
// ascending by date, capped at 10 days.
func buildDaily(entries []models.ForecastEntry) []models.ForecastDay {
	byDay := make(map[time.Time][]models.ForecastEntry)
	for _, entry := range entries {
		t := time.Unix(entry.Dt, 0)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		byDay[day] = append(byDay[day], entry)
	}

	days := make([]models.ForecastDay, 0, len(byDay))
	for date, items := range byDay {
		first := items[0]

		high := first.Main.TempMax
		low := first.Main.TempMin
		for _, item := range items[1:] {
			if item.Main.TempMax > high {
				high = item.Main.TempMax
			}
			if item.Main.TempMin < low {
				low = item.Main.TempMin
			}
		}

		day := models.ForecastDay{
			Date:      date,
			High:      high,
			Low:       low,
			Condition: unknownCondition,
		}
		if len(first.Weather) > 0 {
			day.Condition = first.Weather[0].Main
			day.Icon = first.Weather[0].Icon
		}
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
	if len(days) > maxForecastDays {
		days = days[:maxForecastDays]
	}

	return days
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
