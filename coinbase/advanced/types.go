// Copyright (c) 2023 BVK Chaitanya

package advanced

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPError is returned for non-200 responses from the exchange.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (v *HTTPError) Error() string {
	return fmt.Sprintf("http %s %s returned %d (%s)", v.Method, v.Path, v.StatusCode, http.StatusText(v.StatusCode))
}

func (v *HTTPError) HTTPStatus() int {
	return v.StatusCode
}

// RawProductsResponse holds the product catalog with each entry left
// undecoded, so that one malformed entry doesn't fail the whole response.
type RawProductsResponse struct {
	NumProducts int32             `json:"num_products"`
	Products    []json.RawMessage `json:"products"`
}

// RawCandlesResponse holds the candle records with each entry left undecoded.
type RawCandlesResponse struct {
	Candles []json.RawMessage `json:"candles"`
}

type KeyPermissionsResponse struct {
	CanView       bool   `json:"can_view"`
	CanTrade      bool   `json:"can_trade"`
	CanTransfer   bool   `json:"can_transfer"`
	PortfolioUUID string `json:"portfolio_uuid"`
	PortfolioType string `json:"portfolio_type"`
}
