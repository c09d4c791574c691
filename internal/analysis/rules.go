// ABOUTME: The per-signal rule table: classifier, join offset, significance and wording.
// ABOUTME: Adding a signal means adding a Rule value here, not a new code path.
package analysis

import (
	"fmt"
	"math"

	"github.com/harperreed/migraine/internal/models"
)

var sleepRule = Rule[*models.DailyMetric]{
	Type:     TypeSleep,
	Offset:   PriorDay,
	Classify: IsLowSleep,
	MinPct:   func(th Thresholds) int { return th.Significance.Sleep },
	Title:    "Schlafmangel",
	Condition: func(th Thresholds) string {
		return fmt.Sprintf("sleep < %d min", th.LowSleepMinutes)
	},
	Describe: func(pct int, th Thresholds) string {
		return fmt.Sprintf("Bei %d%% deiner Episoden hast du in der Nacht davor weniger als %g Stunden geschlafen.",
			pct, float64(th.LowSleepMinutes)/60)
	},
}

var stressRule = Rule[*models.DailyMetric]{
	Type:     TypeStress,
	Offset:   SameDay,
	Classify: IsHighStress,
	MinPct:   func(th Thresholds) int { return th.Significance.Stress },
	Title:    "Hoher Stress",
	Condition: func(th Thresholds) string {
		return fmt.Sprintf("stress >= %d", th.HighStress)
	},
	Describe: func(pct int, th Thresholds) string {
		return fmt.Sprintf("Bei %d%% deiner Episoden lag dein durchschnittlicher Stress am selben Tag bei %d oder höher.",
			pct, th.HighStress)
	},
}

var hrvRule = Rule[*models.DailyMetric]{
	Type:     TypeHRV,
	Offset:   PriorDay,
	Classify: IsLowHRV,
	MinPct:   func(th Thresholds) int { return th.Significance.HRV },
	Title:    "Niedrige HRV",
	Condition: func(th Thresholds) string {
		return fmt.Sprintf("hrv < %g ms", th.LowHRV)
	},
	Describe: func(pct int, th Thresholds) string {
		return fmt.Sprintf("Bei %d%% deiner Episoden lag deine HRV in der Nacht davor unter %g ms.", pct, th.LowHRV)
	},
}

var bodyBatteryRule = Rule[*models.DailyMetric]{
	Type:     TypeBodyBattery,
	Offset:   PriorDay,
	Classify: IsLowBodyBattery,
	MinPct:   func(th Thresholds) int { return th.Significance.BodyBattery },
	Title:    "Niedrige Body Battery",
	Condition: func(th Thresholds) string {
		return fmt.Sprintf("body battery < %d", th.LowBodyBattery)
	},
	Describe: func(pct int, th Thresholds) string {
		return fmt.Sprintf("Bei %d%% deiner Episoden lag deine Body Battery am Vortag unter %d.", pct, th.LowBodyBattery)
	},
}

var pressureRule = Rule[*models.DailyWeather]{
	Type:     TypePressure,
	Offset:   SameDay,
	Classify: IsPressureDrop,
	MinPct:   func(th Thresholds) int { return th.Significance.Pressure },
	Title:    "Luftdruckabfall",
	Condition: func(th Thresholds) string {
		return fmt.Sprintf("pressure change <= %g hPa", th.PressureDrop)
	},
	Describe: func(pct int, th Thresholds) string {
		return fmt.Sprintf("Bei %d%% deiner Episoden fiel der Luftdruck um mindestens %g hPa.", pct, math.Abs(th.PressureDrop))
	},
}

var temperatureRule = Rule[*models.DailyWeather]{
	Type:     TypeTemperature,
	Offset:   SameDay,
	Classify: IsHeat,
	MinPct:   func(th Thresholds) int { return th.Significance.Temperature },
	Title:    "Hitze",
	Condition: func(th Thresholds) string {
		return fmt.Sprintf("max temperature > %g °C", th.HeatMaxC)
	},
	Describe: func(pct int, th Thresholds) string {
		return fmt.Sprintf("Bei %d%% deiner Episoden stieg die Temperatur über %g °C.", pct, th.HeatMaxC)
	},
}

var humidityRule = Rule[*models.DailyWeather]{
	Type:     TypeHumidity,
	Offset:   SameDay,
	Classify: IsHighHumidity,
	MinPct:   func(th Thresholds) int { return th.Significance.Humidity },
	Title:    "Hohe Luftfeuchtigkeit",
	Condition: func(th Thresholds) string {
		return fmt.Sprintf("humidity > %g%%", th.HighHumidity)
	},
	Describe: func(pct int, th Thresholds) string {
		return fmt.Sprintf("Bei %d%% deiner Episoden lag die Luftfeuchtigkeit über %g%%.", pct, th.HighHumidity)
	},
}
