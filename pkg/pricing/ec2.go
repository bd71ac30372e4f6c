package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/younsl/autopaused/pkg/utils"
)

// InstanceHourlyPrice returns the on-demand hourly price for an EC2 instance
// type and the source of the pricing
func (c *Client) InstanceHourlyPrice(ctx context.Context, instanceType, region string) (float64, PricingSource) {
	cacheKey := fmt.Sprintf("%s:%s", region, instanceType)

	c.cacheMu.RLock()
	if price, exists := c.cache[cacheKey]; exists {
		c.cacheMu.RUnlock()
		c.updateStats("EC2", region, "cache")
		return price, PricingSourceCache
	}
	c.cacheMu.RUnlock()

	if c.api != nil {
		price, err := c.getEC2PriceFromAPI(ctx, instanceType, region)
		if err == nil {
			c.updateStats("EC2", region, "success")

			c.cacheMu.Lock()
			c.cache[cacheKey] = price
			c.cacheMu.Unlock()

			return price, PricingSourceAPI
		}
	}

	c.updateStats("EC2", region, "failure")
	return 0, PricingSourceNA
}

// getEC2PriceFromAPI retrieves EC2 instance pricing from the AWS Pricing API
func (c *Client) getEC2PriceFromAPI(ctx context.Context, instanceType, region string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Linux on-demand, shared tenancy, no pre-installed software
	filters := []types.Filter{
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("instanceType"),
			Value: aws.String(instanceType),
		},
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("location"),
			Value: aws.String(GetRegionDescriptiveName(region)),
		},
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("operatingSystem"),
			Value: aws.String("Linux"),
		},
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("tenancy"),
			Value: aws.String("Shared"),
		},
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("preInstalledSw"),
			Value: aws.String("NA"),
		},
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("capacitystatus"),
			Value: aws.String("Used"),
		},
	}

	priceJSON, err := c.getPriceFromAPI(ctx, "AmazonEC2", filters, instanceType, region)
	if err != nil {
		return 0, err
	}

	return ExtractOnDemandPrice(priceJSON)
}

// MonthlyCost returns the always-on monthly cost for an hourly rate
func MonthlyCost(hourlyRate float64) float64 {
	return hourlyRate * utils.GetMonthlyHours()
}
