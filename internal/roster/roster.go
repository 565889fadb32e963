package roster

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
	ClockLayout = "15:04"
)

type Location string

const (
	LocationEP   Location = "EP"
	LocationNL   Location = "NL"
	LocationBoth Location = "BOTH"
)

// Locations lists the physical stores, in display order.
var Locations = []Location{LocationEP, LocationNL}

var ErrUnknownLocation = errors.New("unknown location")

func ParseLocation(raw string) (Location, error) {
	switch Location(strings.ToUpper(strings.TrimSpace(raw))) {
	case LocationEP:
		return LocationEP, nil
	case LocationNL:
		return LocationNL, nil
	case LocationBoth:
		return LocationBoth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLocation, raw)
	}
}

// Covers reports whether a record scoped to l applies to the store target.
func (l Location) Covers(target Location) bool {
	return l == target || l == LocationBoth || target == LocationBoth
}

type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Fall   Season = "fall"
)

func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// Weekdays is the fixed Monday-first order used by every week.
var Weekdays = [7]time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// WeekdayIndex returns the Monday-first position of wd.
func WeekdayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, errors.New("date must use YYYY-MM-DD")
	}
	return parsed, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func ParseMonth(value string) (time.Time, error) {
	parsed, err := time.Parse(MonthLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, errors.New("month must use YYYY-MM")
	}
	return parsed, nil
}

// MondayOf normalizes t to the Monday that starts its week.
func MondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -WeekdayIndex(day.Weekday()))
}

// ParseClock converts HH:MM to minutes after midnight.
func ParseClock(value string) (int, bool) {
	parsed, err := time.Parse(ClockLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return parsed.Hour()*60 + parsed.Minute(), true
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeName lowercases and collapses whitespace so names typed by
// different people compare equal.
func NormalizeName(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
