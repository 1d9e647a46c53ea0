// Copyright (c) 2023 BVK Chaitanya

package collector

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProductOutcome is the result of collecting candles for a single product.
// An empty Err indicates success. NumCandles is the number of candles fetched
// from the exchange, which are not stored when the sink write has failed.
type ProductOutcome struct {
	ProductID  string `json:"product_id"`
	NumCandles int    `json:"num_candles"`
	Err        string `json:"error,omitempty"`
}

func (v *ProductOutcome) Succeeded() bool {
	return v.Err == ""
}

// CycleResult summarizes one collection cycle. Outcomes holds exactly one
// entry per product submitted in the cycle, sorted by the product id.
type CycleResult struct {
	ID uuid.UUID `json:"id"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	NumProducts int `json:"num_products"`

	Outcomes []ProductOutcome `json:"outcomes"`
}

func (r *CycleResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

func (r *CycleResult) NumSucceeded() (n int) {
	for i := range r.Outcomes {
		if r.Outcomes[i].Succeeded() {
			n++
		}
	}
	return n
}

func (r *CycleResult) NumFailed() int {
	return len(r.Outcomes) - r.NumSucceeded()
}

// NumCandles returns the total number of candles stored in the cycle.
// Candles of the failed products are not counted.
func (r *CycleResult) NumCandles() (n int) {
	for i := range r.Outcomes {
		if r.Outcomes[i].Succeeded() {
			n += r.Outcomes[i].NumCandles
		}
	}
	return n
}

func (r *CycleResult) String() string {
	return fmt.Sprintf("cycle %s: products=%d succeeded=%d failed=%d candles=%d duration=%s",
		r.ID, r.NumProducts, r.NumSucceeded(), r.NumFailed(), r.NumCandles(), r.Duration())
}
