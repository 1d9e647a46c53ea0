// Copyright (c) 2023 BVK Chaitanya

package api

import (
	"time"
)

const StatusPath = "/status"

type StatusRequest struct {
}

type LimiterStatus struct {
	Name     string
	MaxRPS   int
	Admitted int64
	Waited   int64
	InWindow int
}

type ProductOutcome struct {
	ProductID  string
	NumCandles int
	Error      string `json:",omitempty"`
}

type CycleStatus struct {
	ID        string
	StartTime time.Time
	EndTime   time.Time

	NumProducts  int
	NumSucceeded int
	NumFailed    int
	NumCandles   int

	Failures []*ProductOutcome `json:",omitempty"`
}

type StatusResponse struct {
	Error string `json:",omitempty"`

	StartTime time.Time

	NumCycles int64

	NumRequests  int64
	NumThrottled int64

	Limiters []*LimiterStatus

	// LastCycle is nil if no cycle has finished yet.
	LastCycle *CycleStatus `json:",omitempty"`
}
