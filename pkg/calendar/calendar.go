// Package calendar owns the weekly slot grid used by doctor availability and
// the date/day helpers shared by booking.
package calendar

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"medilink/pkg/model"
)

const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"

	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	FirstSlotHour   = 8
	SlotsPerDay     = 16
	ConsultDuration = 50 * time.Minute
)

// Days lists the canonical day names in schedule order.
var Days = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var weekdayNames = map[time.Weekday]string{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// DefaultTimeSlots returns the canonical day grid: sixteen 50 minute consults
// starting on the hour from 08:00, the last one 23:00-23:50. Every slot starts
// unavailable.
func DefaultTimeSlots() []model.TimeSlot {
	slots := make([]model.TimeSlot, 0, SlotsPerDay)
	for i := 0; i < SlotsPerDay; i++ {
		hour := FirstSlotHour + i
		slots = append(slots, model.TimeSlot{
			StartTime:   fmt.Sprintf("%02d:00", hour),
			EndTime:     fmt.Sprintf("%02d:%02d", hour, int(ConsultDuration.Minutes())),
			IsAvailable: false,
		})
	}
	return slots
}

// ParseDay normalizes a day name. The second value is false for anything that
// is not one of the seven canonical names.
func ParseDay(day string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(day))
	for _, d := range Days {
		if d == normalized {
			return d, true
		}
	}
	return "", false
}

func DayOf(t time.Time) string {
	return weekdayNames[t.UTC().Weekday()]
}

func DayIndex(day string) int {
	for i, d := range Days {
		if d == day {
			return i
		}
	}
	return len(Days)
}

func IsWeekend(day string) bool {
	return day == Saturday || day == Sunday
}

// DefaultWorkingDay reports whether a freshly initialized day is a working day.
func DefaultWorkingDay(day string) bool {
	return !IsWeekend(day)
}

// NormalizeDate drops the time of day, keeping the calendar date in UTC.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	return NormalizeDate(t), nil
}

func ValidClock(s string) bool {
	return clockRegex.MatchString(s)
}

// SlotStart combines a normalized date with an HH:MM clock value.
func SlotStart(date time.Time, clock string) (time.Time, error) {
	if !ValidClock(clock) {
		return time.Time{}, fmt.Errorf("time must be HH:MM, got %q", clock)
	}
	parsed, _ := time.Parse(ClockLayout, clock)
	day := NormalizeDate(date)
	return day.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute), nil
}

// ClockBefore reports whether clock a is strictly before clock b. Both must
// be valid HH:MM values, which compare correctly as strings.
func ClockBefore(a, b string) bool {
	return a < b
}
