package domain

import (
	"fmt"
	"strings"
	"time"
)

// WindowUnit is the unit of a trailing averaging window.
type WindowUnit string

const (
	WindowDays   WindowUnit = "days"
	WindowWeeks  WindowUnit = "weeks"
	WindowMonths WindowUnit = "months"
	WindowYears  WindowUnit = "years"
)

// A month is a fixed 30 days and a year 365, matching how stock averages
// have always been reported.
var windowUnitDays = map[WindowUnit]int{
	WindowDays:   1,
	WindowWeeks:  7,
	WindowMonths: 30,
	WindowYears:  365,
}

// ParseWindowUnit parses a unit name. Empty input means months.
func ParseWindowUnit(s string) (WindowUnit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return WindowMonths, nil
	}

	u := WindowUnit(s)
	if _, ok := windowUnitDays[u]; ok {
		return u, nil
	}

	// singular forms
	u = WindowUnit(s + "s")
	if _, ok := windowUnitDays[u]; ok {
		return u, nil
	}

	return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidWindow, s)
}

// Days returns the length of one unit in calendar days.
func (u WindowUnit) Days() (int, error) {
	d, ok := windowUnitDays[u]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidWindow, string(u))
	}
	return d, nil
}

// Window returns the bounds of the trailing window [end - count*unit, end].
// A window reaching past year one starts at the zero time.
func Window(end time.Time, count int, unit WindowUnit) (time.Time, time.Time, error) {
	days, err := unit.Days()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if count <= 0 {
		return end, end, nil
	}

	// 366 days per elapsed year over-counts the span back to year one.
	if end.Year() < 1 || count > end.Year()*366/days {
		return time.Time{}, end, nil
	}
	return end.AddDate(0, 0, -count*days), end, nil
}
