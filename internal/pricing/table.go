package pricing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ewhitmore/gpubill/internal/compute"
)

// ErrUnknownGPUType is returned when a GPU type is absent from the price
// table or has no usable single-GPU interruptible tier. Absence is an
// error, never a zero-cost default.
var ErrUnknownGPUType = errors.New("unknown GPU type")

// Table resolves a GPU type to its hourly USD price
type Table interface {
	HourlyUSD(ctx context.Context, gpuType string) (float64, error)
}

// OfferSource supplies the provider's live price table
type OfferSource interface {
	Pricing(ctx context.Context) ([]compute.GPUOffer, error)
}

// ProviderTable prices GPU types against the compute provider's live
// offers, read fresh on every lookup
type ProviderTable struct {
	source OfferSource
}

// NewProviderTable creates a provider-backed price table
func NewProviderTable(source OfferSource) *ProviderTable {
	return &ProviderTable{source: source}
}

// HourlyUSD returns the interruptible single-GPU hourly price for the
// given type
func (t *ProviderTable) HourlyUSD(ctx context.Context, gpuType string) (float64, error) {
	offers, err := t.source.Pricing(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch provider pricing: %w", err)
	}

	for _, offer := range offers {
		if offer.GPUType != gpuType || offer.GPUCount != 1 {
			continue
		}
		for _, tier := range offer.Tiers {
			if tier.Interruptible != nil {
				return *tier.Interruptible, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownGPUType, gpuType)
}

// StaticTable prices GPU types from a fixed map, typically loaded from a
// YAML file for dev or offline deployments
type StaticTable struct {
	hourly map[string]float64
}

// NewStaticTable creates a static price table
func NewStaticTable(hourly map[string]float64) *StaticTable {
	return &StaticTable{hourly: hourly}
}

// LoadStaticTable reads a YAML file mapping GPU type to hourly USD price
func LoadStaticTable(path string) (*StaticTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price table: %w", err)
	}

	var hourly map[string]float64
	if err := yaml.Unmarshal(raw, &hourly); err != nil {
		return nil, fmt.Errorf("parse price table: %w", err)
	}
	if len(hourly) == 0 {
		return nil, fmt.Errorf("price table %s is empty", path)
	}

	return NewStaticTable(hourly), nil
}

// HourlyUSD returns the configured hourly price for the given type
func (t *StaticTable) HourlyUSD(_ context.Context, gpuType string) (float64, error) {
	price, ok := t.hourly[gpuType]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownGPUType, gpuType)
	}
	return price, nil
}
