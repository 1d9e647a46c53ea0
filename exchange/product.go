// Copyright (c) 2023 BVK Chaitanya

package exchange

import "fmt"

type ProductStatus int

const (
	StatusOther ProductStatus = iota
	StatusOnline
	StatusOffline
)

func (v ProductStatus) String() string {
	switch v {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	}
	return "other"
}

// ParseStatus maps an exchange reported product status string to a
// ProductStatus. Matching is exact, so unrecognized values and values with a
// different case map to StatusOther.
func ParseStatus(s string) ProductStatus {
	switch s {
	case "online":
		return StatusOnline
	case "offline":
		return StatusOffline
	}
	return StatusOther
}

// Product is a trading pair from the exchange catalog.
type Product struct {
	ProductID string

	BaseName  string
	QuoteName string

	Status    ProductStatus
	RawStatus string

	// Price and Volume24h are nil when exchange doesn't report them.
	Price     *string
	Volume24h *string
}

func (p *Product) IsOnline() bool {
	return p.Status == StatusOnline
}

func (p *Product) String() string {
	return fmt.Sprintf("{ID: %s Base: %s Quote: %s Status: %s}", p.ProductID, p.BaseName, p.QuoteName, p.RawStatus)
}
