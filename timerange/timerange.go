// Copyright (c) 2024 BVK Chaitanya

// Package timerange defines half-open [Begin, End) time ranges where zero
// values mean no limit.
package timerange

import (
	"fmt"
	"os"
	"time"
)

type Range struct {
	Begin, End time.Time
}

func (r *Range) IsZero() bool {
	return r.Begin.IsZero() && r.End.IsZero()
}

// Check returns os.ErrInvalid error if both ends are set and Begin is not
// before the End.
func (r *Range) Check() error {
	if !r.Begin.IsZero() && !r.End.IsZero() && !r.Begin.Before(r.End) {
		return fmt.Errorf("range begin %s must be before the end %s: %w", r.Begin, r.End, os.ErrInvalid)
	}
	return nil
}

func (r *Range) InRange(v time.Time) bool {
	if r.IsZero() {
		return true
	}
	if !r.Begin.IsZero() && v.Before(r.Begin) {
		return false
	}
	if !r.End.IsZero() && (v.Equal(r.End) || v.After(r.End)) {
		return false
	}
	return true
}

// Before returns true if the range ends at or before the input time.
func (r *Range) Before(v time.Time) bool {
	return !r.End.IsZero() && !v.Before(r.End)
}

func (r *Range) String() string {
	format := func(t time.Time) string {
		if t.IsZero() {
			return "*"
		}
		return t.Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s, %s)", format(r.Begin), format(r.End))
}
