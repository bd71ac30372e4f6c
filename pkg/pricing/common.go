package pricing

import (
	"fmt"
	"strconv"

	"github.com/younsl/autopaused/pkg/utils"
)

// updateStats increments the tracking statistics for Pricing API calls
func (c *Client) updateStats(service, region, statType string) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	if _, exists := c.stats[service]; !exists {
		c.stats[service] = make(map[string]*CallStats)
	}
	s, exists := c.stats[service][region]
	if !exists {
		s = &CallStats{}
		c.stats[service][region] = s
	}

	switch statType {
	case "success":
		s.Success++
	case "failure":
		s.Failure++
	case "cache":
		s.Cache++
	}
}

// Stats returns a copy of the pricing API statistics (service -> region -> stats)
func (c *Client) Stats() map[string]map[string]CallStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()

	out := make(map[string]map[string]CallStats, len(c.stats))
	for service, regions := range c.stats {
		out[service] = make(map[string]CallStats, len(regions))
		for region, s := range regions {
			out[service][region] = *s
		}
	}
	return out
}

// GetRegionDescriptiveName returns the human-readable region name used in AWS Pricing API
func GetRegionDescriptiveName(region string) string {
	return utils.GetRegionDescriptiveName(region)
}

// ExtractOnDemandPrice extracts the on-demand price from the pricing data JSON
func ExtractOnDemandPrice(priceJSON string) (float64, error) {
	priceData, err := utils.ParseJSON(priceJSON)
	if err != nil {
		return 0, fmt.Errorf("error parsing pricing data: %w", err)
	}

	onDemand, err := utils.GetNestedMap(priceData, "terms", "OnDemand")
	if err != nil {
		return 0, err
	}

	skuOffer, err := utils.GetFirstMapValue(onDemand)
	if err != nil {
		return 0, fmt.Errorf("no SKU offer found")
	}
	skuOfferMap, ok := skuOffer.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("SKU offer is not a map")
	}

	priceDimensions, err := utils.GetNestedMap(skuOfferMap, "priceDimensions")
	if err != nil {
		return 0, err
	}

	dimension, err := utils.GetFirstMapValue(priceDimensions)
	if err != nil {
		return 0, fmt.Errorf("no price dimension found")
	}
	dimensionMap, ok := dimension.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("price dimension is not a map")
	}

	pricePerUnit, err := utils.GetNestedMap(dimensionMap, "pricePerUnit")
	if err != nil {
		return 0, err
	}

	usd, ok := pricePerUnit["USD"].(string)
	if !ok {
		return 0, fmt.Errorf("USD price not found or invalid")
	}

	price, err := strconv.ParseFloat(usd, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return price, nil
}
