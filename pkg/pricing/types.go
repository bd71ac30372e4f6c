package pricing

// PricingSource represents the source of pricing information
type PricingSource string

const (
	// PricingSourceAPI indicates pricing data came from AWS API
	PricingSourceAPI PricingSource = "API"

	// PricingSourceCache indicates pricing data came from cache
	PricingSourceCache PricingSource = "Cache"

	// PricingSourceConfig indicates pricing data came from a configured override
	PricingSourceConfig PricingSource = "Config"

	// PricingSourceDefault indicates pricing data came from hardcoded defaults
	PricingSourceDefault PricingSource = "Default"

	// PricingSourceNA indicates pricing data is not available
	PricingSourceNA PricingSource = "N/A"
)

// Default GPU prices in USD per hour, keyed by provider kind then GPU type.
// These are fallback prices if Pricing API fails or the provider has no API.
var DefaultGPUPrices = map[string]map[string]float64{
	"vm": { // dedicated GPU virtual machines
		"T4":   0.99,
		"A10G": 1.99,
		"A100": 3.99,
	},
	"self_suspending": { // serverless GPU functions, billed per active second
		"T4":   0.59,
		"L4":   0.89,
		"A10G": 1.10,
		"A100": 3.09,
		"H100": 8.50,
	},
}

// CallStats counts pricing lookups for one service and region
type CallStats struct {
	Success int
	Failure int
	Cache   int
}

// Total returns the number of API calls made (cache hits excluded)
func (s CallStats) Total() int {
	return s.Success + s.Failure
}

// SuccessRate returns the API success percentage
func (s CallStats) SuccessRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total()) * 100.0
}
