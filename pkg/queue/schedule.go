package queue

import "time"

// Schedule computes the next run time strictly after the given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Every runs at a fixed interval.
func Every(interval time.Duration) Schedule {
	return intervalSchedule{interval: interval}
}

// DailyAt runs once a day at the given UTC wall-clock time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.interval)
}

type dailySchedule struct {
	hour, minute int
}

func (s dailySchedule) Next(after time.Time) time.Time {
	after = after.UTC()
	next := time.Date(after.Year(), after.Month(), after.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
