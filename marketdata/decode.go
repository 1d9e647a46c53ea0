// Copyright (c) 2023 BVK Chaitanya

package marketdata

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/bvk/candlebot/exchange"
)

type rawProduct struct {
	ProductID *string `json:"product_id"`
	BaseName  *string `json:"base_name"`
	QuoteName *string `json:"quote_name"`
	Status    *string `json:"status"`

	Price     *string `json:"price"`
	Volume24h *string `json:"volume_24h"`
}

func decodeProduct(data json.RawMessage) (*exchange.Product, error) {
	var v rawProduct
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("could not unmarshal product: %w", err)
	}
	switch {
	case v.ProductID == nil:
		return nil, fmt.Errorf("product_id field is missing: %w", os.ErrInvalid)
	case v.BaseName == nil:
		return nil, fmt.Errorf("base_name field is missing: %w", os.ErrInvalid)
	case v.QuoteName == nil:
		return nil, fmt.Errorf("quote_name field is missing: %w", os.ErrInvalid)
	case v.Status == nil:
		return nil, fmt.Errorf("status field is missing: %w", os.ErrInvalid)
	}
	p := &exchange.Product{
		ProductID: *v.ProductID,
		BaseName:  *v.BaseName,
		QuoteName: *v.QuoteName,
		Status:    exchange.ParseStatus(*v.Status),
		RawStatus: *v.Status,
		Price:     v.Price,
		Volume24h: v.Volume24h,
	}
	return p, nil
}

type rawCandle struct {
	Start  json.Number `json:"start"`
	Low    string      `json:"low"`
	High   string      `json:"high"`
	Open   string      `json:"open"`
	Close  string      `json:"close"`
	Volume string      `json:"volume"`
}

func decodeCandle(data json.RawMessage) (*exchange.Candle, error) {
	var v rawCandle
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("could not unmarshal candle: %w", err)
	}
	start, err := strconv.ParseInt(v.Start.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse candle start time %q: %w", v.Start, err)
	}
	c := &exchange.Candle{
		Start:  start,
		Open:   v.Open,
		High:   v.High,
		Low:    v.Low,
		Close:  v.Close,
		Volume: v.Volume,
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}
