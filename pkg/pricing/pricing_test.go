package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/pricing"
)

const g5PriceJSON = `{
  "product": {"attributes": {"instanceType": "g5.xlarge"}},
  "terms": {
    "OnDemand": {
      "ABC.JRTCKXETXF": {
        "priceDimensions": {
          "ABC.JRTCKXETXF.6YS6EN2CT7": {
            "unit": "Hrs",
            "pricePerUnit": {"USD": "1.0060000000"}
          }
        }
      }
    }
  }
}`

type fakeProductsAPI struct {
	priceList []string
	err       error
	calls     int
}

func (f *fakeProductsAPI) GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &pricing.GetProductsOutput{PriceList: f.priceList}, nil
}

func TestExtractOnDemandPrice(t *testing.T) {
	price, err := ExtractOnDemandPrice(g5PriceJSON)
	if err != nil {
		t.Fatalf("ExtractOnDemandPrice() error: %v", err)
	}
	if price != 1.006 {
		t.Errorf("price = %v, want 1.006", price)
	}

	if _, err := ExtractOnDemandPrice(`{"terms": {}}`); err == nil {
		t.Error("expected error for missing OnDemand terms")
	}
	if _, err := ExtractOnDemandPrice(`not json`); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestInstanceHourlyPrice_CachesAPIResult(t *testing.T) {
	api := &fakeProductsAPI{priceList: []string{g5PriceJSON}}
	c := NewClientWithAPI(api)
	ctx := context.Background()

	price, source := c.InstanceHourlyPrice(ctx, "g5.xlarge", "us-east-1")
	if price != 1.006 || source != PricingSourceAPI {
		t.Fatalf("first lookup = (%v, %s), want (1.006, API)", price, source)
	}

	price, source = c.InstanceHourlyPrice(ctx, "g5.xlarge", "us-east-1")
	if price != 1.006 || source != PricingSourceCache {
		t.Fatalf("second lookup = (%v, %s), want (1.006, Cache)", price, source)
	}
	if api.calls != 1 {
		t.Errorf("API calls = %d, want 1", api.calls)
	}

	stats := c.Stats()["EC2"]["us-east-1"]
	if stats.Success != 1 || stats.Cache != 1 || stats.Failure != 0 {
		t.Errorf("stats = %+v, want 1 success and 1 cache hit", stats)
	}
	if stats.SuccessRate() != 100 {
		t.Errorf("success rate = %v, want 100", stats.SuccessRate())
	}
}

func TestHourlyRate_Fallbacks(t *testing.T) {
	ctx := context.Background()
	failing := NewClientWithAPI(&fakeProductsAPI{err: errors.New("throttled")})

	tests := []struct {
		name       string
		client     *Client
		query      RateQuery
		wantPrice  float64
		wantSource PricingSource
	}{
		{
			name:       "api failure falls back to default table",
			client:     failing,
			query:      RateQuery{ProviderKind: "vm", GPUType: "A10G", InstanceType: "g5.xlarge", Region: "us-east-1"},
			wantPrice:  1.99,
			wantSource: PricingSourceDefault,
		},
		{
			name:       "serverless default",
			client:     NewClientWithAPI(nil),
			query:      RateQuery{ProviderKind: "self_suspending", GPUType: "H100"},
			wantPrice:  8.50,
			wantSource: PricingSourceDefault,
		},
		{
			name:       "unknown gpu",
			client:     NewClientWithAPI(nil),
			query:      RateQuery{ProviderKind: "vm", GPUType: "MI300X"},
			wantPrice:  0,
			wantSource: PricingSourceNA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, source := tt.client.HourlyRate(ctx, tt.query)
			if price != tt.wantPrice || source != tt.wantSource {
				t.Errorf("HourlyRate() = (%v, %s), want (%v, %s)", price, source, tt.wantPrice, tt.wantSource)
			}
		})
	}
}

func TestHourlyRate_OverrideWins(t *testing.T) {
	c := NewClientWithAPI(&fakeProductsAPI{priceList: []string{g5PriceJSON}})
	c.SetOverride("A10G", 1.5)

	price, source := c.HourlyRate(context.Background(), RateQuery{ProviderKind: "vm", GPUType: "A10G", InstanceType: "g5.xlarge"})
	if price != 1.5 || source != PricingSourceConfig {
		t.Errorf("HourlyRate() = (%v, %s), want (1.5, Config)", price, source)
	}
}

func TestMonthlyCost(t *testing.T) {
	if got := MonthlyCost(2); got != 1460 {
		t.Errorf("MonthlyCost(2) = %v, want 1460", got)
	}
}
