// Copyright (c) 2025 BVK Chaitanya

package timerange

import (
	"fmt"
	"os"
	"sort"
	"time"
)

var periods = map[string]func(now time.Time) *Range{
	"today": func(now time.Time) *Range {
		beg := startOfDay(now)
		return &Range{Begin: beg, End: beg.AddDate(0, 0, 1)}
	},
	"yesterday": func(now time.Time) *Range {
		today := startOfDay(now)
		return &Range{Begin: today.AddDate(0, 0, -1), End: today}
	},
	"this-week": func(now time.Time) *Range {
		begin := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
		return &Range{Begin: begin, End: begin.AddDate(0, 0, 7)}
	},
	"last-week": func(now time.Time) *Range {
		end := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
		return &Range{Begin: end.AddDate(0, 0, -7), End: end}
	},
	"this-month": func(now time.Time) *Range {
		begin := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &Range{Begin: begin, End: begin.AddDate(0, 1, 0)}
	},
	"last-month": func(now time.Time) *Range {
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &Range{Begin: end.AddDate(0, -1, 0), End: end}
	},
}

func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// PeriodNames returns the names accepted by Period in sorted order.
func PeriodNames() []string {
	var names []string
	for k := range periods {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Period returns the named calendar period containing the input time, in the
// input time's location.
func Period(name string, now time.Time) (*Range, error) {
	fn, ok := periods[name]
	if !ok {
		return nil, fmt.Errorf("unknown period name %q: %w", name, os.ErrInvalid)
	}
	return fn(now), nil
}
