package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
)

// APIRegion is where the AWS Pricing API is served (us-east-1 and ap-south-1 only)
const APIRegion = "us-east-1"

// ProductsAPI is the subset of the AWS Pricing API used here
type ProductsAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

// Client resolves hourly prices. The zero value is not usable; use NewClient
// or NewClientWithAPI.
type Client struct {
	api       ProductsAPI // nil disables API lookups
	overrides map[string]float64

	cacheMu sync.RWMutex
	cache   map[string]float64

	statsMu sync.RWMutex
	stats   map[string]map[string]*CallStats // service -> region -> stats
}

// NewClient creates a Client backed by the AWS Pricing API
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(APIRegion))
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config for pricing API: %w", err)
	}
	return NewClientWithAPI(pricing.NewFromConfig(cfg)), nil
}

// NewClientWithAPI creates a Client using api. A nil api serves only
// overrides and defaults.
func NewClientWithAPI(api ProductsAPI) *Client {
	return &Client{
		api:       api,
		overrides: make(map[string]float64),
		cache:     make(map[string]float64),
		stats:     make(map[string]map[string]*CallStats),
	}
}

// SetOverride pins the hourly rate of a GPU type regardless of provider
func (c *Client) SetOverride(gpuType string, hourlyRate float64) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.overrides[gpuType] = hourlyRate
}

// getPriceFromAPI is a generic function to get pricing data from AWS API
func (c *Client) getPriceFromAPI(ctx context.Context, serviceCode string, filters []types.Filter, resourceType, region string) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("AWS pricing client not initialized")
	}

	input := &pricing.GetProductsInput{
		ServiceCode: aws.String(serviceCode),
		Filters:     filters,
		MaxResults:  aws.Int32(1),
	}

	resp, err := c.api.GetProducts(ctx, input)
	if err != nil {
		return "", fmt.Errorf("error calling AWS Pricing API: %w", err)
	}

	if len(resp.PriceList) == 0 {
		return "", fmt.Errorf("no pricing found for %s in region %s", resourceType, region)
	}

	return resp.PriceList[0], nil
}
