package pricing

import (
	"context"
)

// RateQuery identifies what is being priced
type RateQuery struct {
	ProviderKind string // "vm" or "self_suspending"
	GPUType      string
	InstanceType string // EC2 instance type, priced through the API when set
	Region       string
}

// HourlyRate resolves the hourly rate for q: configured override, then
// the Pricing API for EC2 instance types, then the built-in GPU table.
func (c *Client) HourlyRate(ctx context.Context, q RateQuery) (float64, PricingSource) {
	c.cacheMu.RLock()
	override, ok := c.overrides[q.GPUType]
	c.cacheMu.RUnlock()
	if ok {
		return override, PricingSourceConfig
	}

	if q.InstanceType != "" {
		if price, source := c.InstanceHourlyPrice(ctx, q.InstanceType, q.Region); source != PricingSourceNA {
			return price, source
		}
	}

	return DefaultRate(q.ProviderKind, q.GPUType)
}

// DefaultRate returns the built-in hourly price for a GPU type
func DefaultRate(providerKind, gpuType string) (float64, PricingSource) {
	if prices, ok := DefaultGPUPrices[providerKind]; ok {
		if price, ok := prices[gpuType]; ok {
			return price, PricingSourceDefault
		}
	}
	return 0, PricingSourceNA
}
