package service

// Level is the three-level compliance signal shown to clinicians.
type Level string

const (
	LevelRed    Level = "RED"
	LevelYellow Level = "YELLOW"
	LevelGreen  Level = "GREEN"
)

// Thresholds for the weekly compliance rule. A day under skippedDayHours is
// treated as skipped entirely; an average under targetAverageHours marks low
// usage.
const (
	skippedDayHours    = 0.1
	targetAverageHours = 20.0
)

// Classify maps a trailing week of daily wear hours to a compliance level.
// Rules are evaluated in order, first match wins: RED if any day was skipped,
// YELLOW if the 7-day average (including zero days) is below target, GREEN
// otherwise.
func Classify(dailyHours [7]float64) Level {
	var sum float64
	for _, h := range dailyHours {
		if h < skippedDayHours {
			return LevelRed
		}
		sum += h
	}
	if sum/7 < targetAverageHours {
		return LevelYellow
	}
	return LevelGreen
}

// WeeklyAverage returns the mean daily hours over the 7-day window.
func WeeklyAverage(dailyHours [7]float64) float64 {
	var sum float64
	for _, h := range dailyHours {
		sum += h
	}
	return sum / 7
}
