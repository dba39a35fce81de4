// Package orders fetches order windows from the store and rolls weekend
// windows up into a Monday view.
package orders

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// DateWindow covers one local calendar day: [Start, End).
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns the window of the calendar day containing date, in loc.
// End is the following local midnight, so consecutive windows tile the
// timeline even across DST changes.
func WindowFor(date time.Time, loc *time.Location) DateWindow {
	if loc == nil {
		loc = time.Local
	}
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return DateWindow{Start: start, End: start.AddDate(0, 0, 1)}
}

// ParseDate parses a YYYY-MM-DD date as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func (w DateWindow) StartMillis() int64 { return w.Start.UnixMilli() }
func (w DateWindow) EndMillis() int64 { return w.End.UnixMilli() }

// Date is the calendar date of the window.
func (w DateWindow) Date() string { return w.Start.Format(DateLayout) }

// Contains reports whether the epoch-millis timestamp falls in the window.
func (w DateWindow) Contains(ts int64) bool {
	return ts >= w.StartMillis() && ts < w.EndMillis()
}

func (w DateWindow) Overlaps(o DateWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

type WindowKind string

const (
	WindowPrimary  WindowKind = "primary"
	WindowSaturday WindowKind = "saturday"
	WindowSunday   WindowKind = "sunday"
)

// WindowSpec is one window an aggregated view needs.
type WindowSpec struct {
	Kind   WindowKind
	Window DateWindow
}

// Selection is the operator's choice of date, weekend toggles and site.
// Nil toggles take the default: on for a Monday.
type Selection struct {
	Date            time.Time
	IncludeSaturday *bool
	IncludeSunday   *bool
	Location        string
}

func IsMonday(date time.Time) bool {
	return date.Weekday() == time.Monday
}

func resolveToggle(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

// Windows returns the primary window followed by any enabled weekend windows.
// Weekend toggles only apply when the date is a Monday.
func (s Selection) Windows(loc *time.Location) []WindowSpec {
	primary := WindowFor(s.Date, loc)
	specs := []WindowSpec{{Kind: WindowPrimary, Window: primary}}
	if !IsMonday(primary.Start) {
		return specs
	}

	if resolveToggle(s.IncludeSaturday) {
		specs = append(specs, WindowSpec{Kind: WindowSaturday, Window: WindowFor(primary.Start.AddDate(0, 0, -2), loc)})
	}
	if resolveToggle(s.IncludeSunday) {
		specs = append(specs, WindowSpec{Kind: WindowSunday, Window: WindowFor(primary.Start.AddDate(0, 0, -1), loc)})
	}
	return specs
}

// Toggles reports the effective weekend toggles of the selection.
func (s Selection) Toggles(loc *time.Location) (saturday, sunday bool) {
	if !IsMonday(WindowFor(s.Date, loc).Start) {
		return false, false
	}
	return resolveToggle(s.IncludeSaturday), resolveToggle(s.IncludeSunday)
}
