package weather

import (
	"time"
)

// Condition is the normalized weather condition, a closed set matching the
// OpenWeatherMap condition groups.
type Condition string

const (
	ConditionClear        Condition = "clear"
	ConditionClouds       Condition = "clouds"
	ConditionRain         Condition = "rain"
	ConditionSnow         Condition = "snow"
	ConditionThunderstorm Condition = "thunderstorm"
	ConditionDrizzle      Condition = "drizzle"
	ConditionMist         Condition = "mist"
	ConditionFog          Condition = "fog"
	ConditionHaze         Condition = "haze"
	ConditionDust         Condition = "dust"
	ConditionSand         Condition = "sand"
	ConditionAsh          Condition = "ash"
	ConditionSquall       Condition = "squall"
	ConditionTornado      Condition = "tornado"
)

// Units accepted by the upstream API.
const (
	UnitsImperial = "imperial"
	UnitsMetric   = "metric"
)

// Snapshot is the normalized weather view at a point in time. Immutable; one
// snapshot is consumed by exactly one generation step.
type Snapshot struct {
	Location      string    `json:"location"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	Humidity      int       `json:"humidity"` // percent, 0-100
	Pressure      int       `json:"pressure"`
	VisibilityKM  float64   `json:"visibilityKm"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection int       `json:"windDirection"`
	Condition     Condition `json:"conditions"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Timestamp     time.Time `json:"timestamp"` // always UTC
	Timezone      string    `json:"timezone"`
}

// AlertType classifies an upstream weather alert.
type AlertType string

const (
	AlertSevereThunderstorm AlertType = "severe_thunderstorm"
	AlertTornado            AlertType = "tornado"
	AlertHurricane          AlertType = "hurricane"
	AlertFlood              AlertType = "flood"
	AlertWinterStorm        AlertType = "winter_storm"
	AlertHeatWave           AlertType = "heat_wave"
	AlertColdWave           AlertType = "cold_wave"
	AlertWind               AlertType = "wind"
	AlertFog                AlertType = "fog"
	AlertDustStorm          AlertType = "dust_storm"
)

// Alert is a normalized weather alert.
type Alert struct {
	Type        AlertType `json:"alertType"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Source      string    `json:"source"`
}

// AirQuality is a normalized air pollution reading.
type AirQuality struct {
	AQI       int       `json:"aqi"`
	PM25      float64   `json:"pm2_5"`
	PM10      float64   `json:"pm10"`
	O3        float64   `json:"o3"`
	NO2       float64   `json:"no2"`
	SO2       float64   `json:"so2"`
	CO        float64   `json:"co"`
	Timestamp time.Time `json:"timestamp"`
}

// UVIndex is a normalized UV reading with derived exposure guidance.
type UVIndex struct {
	Value               int       `json:"uvIndex"`
	Category            string    `json:"uvCategory"` // low, moderate, high, very_high, extreme
	SafeExposureMinutes int       `json:"safeExposureTime,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// mapCondition maps an OpenWeatherMap condition group to the closed set.
// Unknown groups map to clear.
func mapCondition(main string) Condition {
	switch main {
	case "Clear":
		return ConditionClear
	case "Clouds":
		return ConditionClouds
	case "Rain":
		return ConditionRain
	case "Snow":
		return ConditionSnow
	case "Thunderstorm":
		return ConditionThunderstorm
	case "Drizzle":
		return ConditionDrizzle
	case "Mist":
		return ConditionMist
	case "Fog":
		return ConditionFog
	case "Haze":
		return ConditionHaze
	case "Dust":
		return ConditionDust
	case "Sand":
		return ConditionSand
	case "Ash":
		return ConditionAsh
	case "Squall":
		return ConditionSquall
	case "Tornado":
		return ConditionTornado
	default:
		return ConditionClear
	}
}
