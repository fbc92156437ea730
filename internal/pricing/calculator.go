// Package pricing converts job requests into USD and settlement-currency
// costs using the GPU price table and a time-cached exchange rate.
package pricing

import (
	"context"
	"fmt"
)

// DefaultBuffer is the overcollateralization factor applied when
// converting USD to the settlement currency, absorbing rate movement
// between quote time and settlement time.
const DefaultBuffer = 1.2

// Quote is the priced form of one job request. Rate is echoed back so it
// can be stored in the debit record for audit.
type Quote struct {
	USD        float64
	Settlement float64
	Rate       float64
}

// Calculator prices job requests
type Calculator struct {
	table  Table
	rates  *RateCache
	buffer float64
}

// NewCalculator creates a calculator. The buffer must exceed 1.0; it
// divides the settlement cost so users are charged slightly more
// settlement currency than the spot rate implies.
func NewCalculator(table Table, rates *RateCache, buffer float64) (*Calculator, error) {
	if buffer <= 1.0 {
		return nil, fmt.Errorf("safety buffer must exceed 1.0, got %v", buffer)
	}
	return &Calculator{
		table:  table,
		rates:  rates,
		buffer: buffer,
	}, nil
}

// Price quotes a (GPU type, duration) pair
func (c *Calculator) Price(ctx context.Context, gpuType string, durationSeconds int) (Quote, error) {
	hourly, err := c.table.HourlyUSD(ctx, gpuType)
	if err != nil {
		return Quote{}, err
	}

	rate, err := c.rates.Rate(ctx)
	if err != nil {
		return Quote{}, err
	}

	usd := hourly * float64(durationSeconds) / 3600
	return Quote{
		USD:        usd,
		Settlement: usd / (rate * c.buffer),
		Rate:       rate,
	}, nil
}
