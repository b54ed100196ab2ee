package weather

import "strings"

// mapAlertType buckets an upstream alert event name.
func mapAlertType(event string) AlertType {
	e := strings.ToLower(event)
	switch {
	case strings.Contains(e, "thunderstorm"):
		return AlertSevereThunderstorm
	case strings.Contains(e, "tornado"):
		return AlertTornado
	case strings.Contains(e, "hurricane"):
		return AlertHurricane
	case strings.Contains(e, "flood"):
		return AlertFlood
	case strings.Contains(e, "winter"), strings.Contains(e, "snow"):
		return AlertWinterStorm
	case strings.Contains(e, "heat"):
		return AlertHeatWave
	case strings.Contains(e, "cold"):
		return AlertColdWave
	case strings.Contains(e, "wind"):
		return AlertWind
	case strings.Contains(e, "fog"):
		return AlertFog
	case strings.Contains(e, "dust"):
		return AlertDustStorm
	default:
		return AlertSevereThunderstorm
	}
}

// uvCategory buckets a raw UV index value.
func uvCategory(value float64) string {
	switch {
	case value <= 2:
		return "low"
	case value <= 5:
		return "moderate"
	case value <= 7:
		return "high"
	case value <= 10:
		return "very_high"
	default:
		return "extreme"
	}
}

// safeExposureMinutes is the advisory unprotected exposure time.
func safeExposureMinutes(value float64) int {
	switch {
	case value <= 2:
		return 60
	case value <= 5:
		return 30
	case value <= 7:
		return 20
	case value <= 10:
		return 10
	default:
		return 5
	}
}
