// Copyright (c) 2023 BVK Chaitanya

package ratelimit

import (
	"fmt"
	"os"
	"time"
)

const (
	// PublicRPS is the documented request rate limit for public endpoints.
	PublicRPS = 10

	// PrivateRPS is the documented request rate limit for private endpoints.
	PrivateRPS = 30
)

type Options struct {
	// MaxRPS is the maximum number of admissions allowed in any Window sized
	// time interval.
	MaxRPS int

	// MaxConcurrent is the maximum number of outstanding permits. Defaults to
	// MaxRPS.
	MaxConcurrent int

	// Window is the sliding window duration. Defaults to one second.
	Window time.Duration
}

func (v *Options) setDefaults() {
	if v.MaxConcurrent == 0 {
		v.MaxConcurrent = v.MaxRPS
	}
	if v.Window == 0 {
		v.Window = time.Second
	}
}

func (v *Options) Check() error {
	if v.MaxRPS <= 0 {
		return fmt.Errorf("max rps must be positive: %w", os.ErrInvalid)
	}
	if v.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be positive: %w", os.ErrInvalid)
	}
	if v.Window <= 0 {
		return fmt.Errorf("window duration must be positive: %w", os.ErrInvalid)
	}
	return nil
}
