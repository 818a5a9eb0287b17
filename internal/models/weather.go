package models

import (
	"math"
	"time"
)

// proximityThreshold is the per-axis coordinate delta under which two
// locations are treated as the same city.
const proximityThreshold = 0.01

// SameLocation reports whether two coordinates refer to the same city,
// using a small per-axis tolerance rather than exact equality.
func SameLocation(a, b Coordinates) bool {
	return math.Abs(a.Lat-b.Lat) < proximityThreshold &&
		math.Abs(a.Lon-b.Lon) < proximityThreshold
}

// WeatherSnapshot is an immutable point-in-time reading for one location,
// built from a provider current-weather response.
type WeatherSnapshot struct {
	CityName    string      `json:"city_name"`
	Country     string      `json:"country"`
	Temperature float64     `json:"temperature"`
	Condition   string      `json:"condition"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	High        float64     `json:"high"`
	Low         float64     `json:"low"`
	Humidity    int         `json:"humidity"`
	Coordinates Coordinates `json:"coordinates"`
}

// Equal compares snapshots by city identity and reading, not by every field.
func (s WeatherSnapshot) Equal(o WeatherSnapshot) bool {
	return s.CityName == o.CityName &&
		s.Country == o.Country &&
		s.Temperature == o.Temperature &&
		s.Condition == o.Condition &&
		s.Coordinates == o.Coordinates
}

// ForecastDay is one calendar day rolled up from 3-hour forecast entries:
// high is the max of the contributing highs, low the min of the lows, and
// the first entry of the day supplies condition and icon.
type ForecastDay struct {
	Date      time.Time `json:"date"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Condition string    `json:"condition"`
	Icon      string    `json:"icon"`
}

// ForecastHour is a raw 3-hour-resolution entry inside the next-24h window.
type ForecastHour struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	Condition   string    `json:"condition"`
	Icon        string    `json:"icon"`
}

// FavoriteCity mirrors a row of the favorite_cities table. ID is nil for
// instances that were never persisted.
type FavoriteCity struct {
	ID        *int64     `json:"id"`
	UserID    string     `json:"user_id"`
	CityName  string     `json:"city_name"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	CreatedAt *time.Time `json:"created_at"`
}

// Coordinates returns the city's location as a Coordinates value.
func (f FavoriteCity) Coordinates() Coordinates {
	return Coordinates{Lat: f.Lat, Lon: f.Lon}
}

// WidgetSnapshot is the single-slot blob shared with the widget process.
type WidgetSnapshot struct {
	City          string    `json:"city"`
	Temp          float64   `json:"temp"`
	ConditionIcon string    `json:"conditionIcon"`
	Timestamp     time.Time `json:"timestamp"`
}

// TemperatureUnit is the persisted display-unit preference.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "°C"
	Fahrenheit TemperatureUnit = "°F"
)

// Valid reports whether the unit is one of the two supported values.
func (u TemperatureUnit) Valid() bool {
	return u == Celsius || u == Fahrenheit
}

// ConvertTemperature converts a Celsius reading into the given display unit.
func ConvertTemperature(celsius float64, unit TemperatureUnit) float64 {
	if unit == Fahrenheit {
		return celsius*9/5 + 32
	}
	return celsius
}
