package models

// Response shapes for the OpenWeatherMap REST API (current weather and the
// 5-day/3-hour forecast). Field sets are trimmed to what the service reads.

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type WeatherCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type CurrentResponse struct {
	Coord   Coordinates        `json:"coord"`
	Weather []WeatherCondition `json:"weather"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

type ForecastEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp    float64 `json:"temp"`
		TempMin float64 `json:"temp_min"`
		TempMax float64 `json:"temp_max"`
	} `json:"main"`
	Weather []WeatherCondition `json:"weather"`
	DtTxt   string             `json:"dt_txt"`
}

type ForecastResponse struct {
	List []ForecastEntry `json:"list"`
	City struct {
		Name    string      `json:"name"`
		Country string      `json:"country"`
		Coord   Coordinates `json:"coord"`
	} `json:"city"`
}
