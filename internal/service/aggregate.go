package service

import (
	"time"

	"github.com/invilign/aligner-tracker/internal/domain"
)

// DayTotal is one bucket of a weekly series: a calendar day and the summed
// wear time for logs starting on it.
type DayTotal struct {
	Date  time.Time
	Hours float64
}

// DailyTotal sums the wear time of the given logs for one calendar day. Logs
// are expected to be pre-filtered to those starting on date. Closed logs
// contribute end minus start; if date is today and a RUNNING log is present,
// its live elapsed time (now minus start) is added once. A client's display
// refresh is never authoritative; this recomputation is.
func DailyTotal(date time.Time, logs []domain.WearLog, now time.Time, loc *time.Location) time.Duration {
	var total time.Duration
	isToday := sameDay(date, now, loc)
	liveAdded := false

	for i := range logs {
		log := &logs[i]
		if log.Closed() {
			total += log.EndAt.Sub(log.StartAt)
			continue
		}
		if isToday && !liveAdded {
			total += now.Sub(log.StartAt)
			liveAdded = true
		}
	}
	return total
}

// WeeklySeries buckets logs into the 7 calendar days ending on anchor,
// inclusive, keyed by the day each log started. An open log's end is treated
// as now. The result is always exactly 7 buckets, oldest first; logs starting
// outside the window are ignored.
func WeeklySeries(logs []domain.WearLog, anchor time.Time, now time.Time, loc *time.Location) []DayTotal {
	series := make([]DayTotal, 7)
	for i := 0; i < 7; i++ {
		day, _ := DayBounds(anchor.AddDate(0, 0, i-6), loc)
		series[i] = DayTotal{Date: day}
	}

	for i := range logs {
		log := &logs[i]
		day, _ := DayBounds(log.StartAt, loc)
		for j := range series {
			if series[j].Date.Equal(day) {
				series[j].Hours += log.Duration(now).Hours()
				break
			}
		}
	}
	return series
}

// WeeklyHours flattens a series into the 7-element array the compliance
// classifier consumes.
func WeeklyHours(series []DayTotal) [7]float64 {
	var hours [7]float64
	for i := range series {
		if i < len(hours) {
			hours[i] = series[i].Hours
		}
	}
	return hours
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
