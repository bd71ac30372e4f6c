package aws

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/younsl/autopaused/pkg/pricing"
	"github.com/younsl/autopaused/pkg/provider"
	"github.com/younsl/autopaused/pkg/utils"
)

// LambdaAPI is the subset of the Lambda API used by LambdaClient
type LambdaAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	DeleteFunction(ctx context.Context, params *lambda.DeleteFunctionInput, optFns ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error)
}

// LambdaOptions configures the serverless GPU provider
type LambdaOptions struct {
	Name         string        // provider tag, default "lambda"
	GPUTypes     []string      // empty means the built-in serverless price table
	MetricWindow time.Duration // default 5 minutes
	Concurrency  int           // reserved concurrency used to scale busy time, default 1
}

func (o LambdaOptions) withDefaults() LambdaOptions {
	if o.Name == "" {
		o.Name = "lambda"
	}
	if o.MetricWindow <= 0 {
		o.MetricWindow = 5 * time.Minute
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// LambdaClient is the self-suspending provider. Functions scale to zero on
// their own, so Pause and Resume have nothing to do. Utilization is the
// share of the metric window spent executing.
type LambdaClient struct {
	client   LambdaAPI
	cwClient CloudWatchAPI
	region   string
	opts     LambdaOptions
	gpus     map[string]bool
	now      func() time.Time
}

// NewLambdaClient creates a new LambdaClient
func NewLambdaClient(ctx context.Context, region string, opts LambdaOptions) (*LambdaClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	return NewLambdaClientFromAPI(lambda.NewFromConfig(cfg), cloudwatch.NewFromConfig(cfg), region, opts), nil
}

// NewLambdaClientFromAPI creates a LambdaClient over existing API clients
func NewLambdaClientFromAPI(client LambdaAPI, cwClient CloudWatchAPI, region string, opts LambdaOptions) *LambdaClient {
	opts = opts.withDefaults()

	gpus := make(map[string]bool)
	if len(opts.GPUTypes) == 0 {
		for gpu := range pricing.DefaultGPUPrices[string(provider.KindSelfSuspending)] {
			gpus[gpu] = true
		}
	}
	for _, gpu := range opts.GPUTypes {
		gpus[utils.NormalizeGPUType(gpu)] = true
	}

	return &LambdaClient{
		client:   client,
		cwClient: cwClient,
		region:   region,
		opts:     opts,
		gpus:     gpus,
		now:      time.Now,
	}
}

func (c *LambdaClient) Name() string        { return c.opts.Name }
func (c *LambdaClient) Kind() provider.Kind { return provider.KindSelfSuspending }

func (c *LambdaClient) SupportsGPU(gpuType string) bool {
	return c.gpus[utils.NormalizeGPUType(gpuType)]
}

// GetStatus maps the function state onto a provider status. An inactive
// function has been reclaimed and reports suspended.
func (c *LambdaClient) GetStatus(ctx context.Context, functionName string) (provider.Status, error) {
	result, err := c.client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(functionName),
	})
	if err != nil {
		if isAPIError(err, "ResourceNotFoundException") {
			return provider.StatusUnknown, fmt.Errorf("lambda %s: %w", functionName, provider.ErrInstanceNotFound)
		}
		return provider.StatusUnknown, fmt.Errorf("error getting Lambda function %s: %w", functionName, err)
	}
	if result.Configuration == nil {
		return provider.StatusUnknown, nil
	}

	switch result.Configuration.State {
	case lambdaTypes.StateActive:
		return provider.StatusRunning, nil
	case lambdaTypes.StatePending:
		return provider.StatusPending, nil
	case lambdaTypes.StateInactive:
		return provider.StatusSuspended, nil
	default:
		return provider.StatusUnknown, nil
	}
}

// GetMetrics reports the busy share of the metric window as utilization.
// A window without invocations reads as 0%.
func (c *LambdaClient) GetMetrics(ctx context.Context, functionName string) (provider.Metrics, error) {
	status, err := c.GetStatus(ctx, functionName)
	if err != nil {
		return provider.Metrics{}, err
	}

	now := c.now()
	busyMs, err := windowSum(ctx, c.cwClient, metricQuery{
		namespace:  "AWS/Lambda",
		metricName: "Duration",
		dimensions: []cwTypes.Dimension{
			{
				Name:  aws.String("FunctionName"),
				Value: aws.String(functionName),
			},
		},
		window: c.opts.MetricWindow,
		period: int32(c.opts.MetricWindow / time.Second),
	}, now)
	if err != nil {
		return provider.Metrics{}, err
	}

	return provider.Metrics{
		GPUUtilizationPercent: busyPercent(busyMs, c.opts.MetricWindow, c.opts.Concurrency),
		Status:                status,
		CollectedAt:           now,
	}, nil
}

// busyPercent converts summed execution milliseconds into a utilization percentage
func busyPercent(busyMs float64, window time.Duration, concurrency int) float64 {
	capacityMs := float64(window.Milliseconds()) * float64(concurrency)
	if capacityMs <= 0 {
		return 0
	}
	return math.Min(busyMs/capacityMs*100.0, 100.0)
}

// Pause is a no-op; idle functions are reclaimed by the platform
func (c *LambdaClient) Pause(ctx context.Context, functionName string) error {
	return nil
}

// Resume is a no-op; the next invocation cold-starts the function
func (c *LambdaClient) Resume(ctx context.Context, functionName string) error {
	return nil
}

// Delete removes the function
func (c *LambdaClient) Delete(ctx context.Context, functionName string) error {
	_, err := c.client.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(functionName),
	})
	if err != nil {
		if isAPIError(err, "ResourceNotFoundException") {
			return fmt.Errorf("lambda %s: %w", functionName, provider.ErrInstanceNotFound)
		}
		return fmt.Errorf("error deleting Lambda function %s: %w", functionName, err)
	}
	return nil
}
