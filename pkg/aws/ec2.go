package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/pkg/pricing"
	"github.com/younsl/autopaused/pkg/provider"
	"github.com/younsl/autopaused/pkg/utils"
)

// EC2API is the subset of the EC2 API used by EC2Client
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// EC2Options configures the EC2 GPU provider
type EC2Options struct {
	Name            string        // provider tag, default "ec2"
	GPUTypes        []string      // GPU types offered; empty means every known GPU family
	MetricNamespace string        // default "CWAgent"
	MetricName      string        // default "nvidia_smi_utilization_gpu"
	MetricWindow    time.Duration // default 5 minutes
	Hibernate       bool          // hibernate instead of stop
}

func (o EC2Options) withDefaults() EC2Options {
	if o.Name == "" {
		o.Name = "ec2"
	}
	if o.MetricNamespace == "" {
		o.MetricNamespace = "CWAgent"
	}
	if o.MetricName == "" {
		o.MetricName = "nvidia_smi_utilization_gpu"
	}
	if o.MetricWindow <= 0 {
		o.MetricWindow = 5 * time.Minute
	}
	return o
}

// EC2Client is the dedicated-VM provider: pause stops the instance and
// resume starts it again.
type EC2Client struct {
	client   EC2API
	cwClient CloudWatchAPI
	region   string
	opts     EC2Options
	gpus     map[string]bool
	now      func() time.Time
}

// NewEC2Client creates a new EC2Client
func NewEC2Client(ctx context.Context, region string, opts EC2Options) (*EC2Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	return NewEC2ClientFromAPI(ec2.NewFromConfig(cfg), cloudwatch.NewFromConfig(cfg), region, opts), nil
}

// NewEC2ClientFromAPI creates an EC2Client over existing API clients
func NewEC2ClientFromAPI(client EC2API, cwClient CloudWatchAPI, region string, opts EC2Options) *EC2Client {
	opts = opts.withDefaults()

	gpus := make(map[string]bool)
	if len(opts.GPUTypes) == 0 {
		for _, gpu := range utils.GPUInstanceFamilies {
			gpus[gpu] = true
		}
	}
	for _, gpu := range opts.GPUTypes {
		gpus[utils.NormalizeGPUType(gpu)] = true
	}

	return &EC2Client{
		client:   client,
		cwClient: cwClient,
		region:   region,
		opts:     opts,
		gpus:     gpus,
		now:      time.Now,
	}
}

func (c *EC2Client) Name() string        { return c.opts.Name }
func (c *EC2Client) Kind() provider.Kind { return provider.KindVM }
func (c *EC2Client) Region() string      { return c.region }

// SupportsGPU reports whether this provider offers gpuType
func (c *EC2Client) SupportsGPU(gpuType string) bool {
	return c.gpus[utils.NormalizeGPUType(gpuType)]
}

// describeInstance returns a single instance by ID
func (c *EC2Client) describeInstance(ctx context.Context, instanceID string) (types.Instance, error) {
	result, err := c.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		if isAPIError(err, "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed") {
			return types.Instance{}, fmt.Errorf("ec2 %s: %w", instanceID, provider.ErrInstanceNotFound)
		}
		return types.Instance{}, fmt.Errorf("error querying EC2 instance %s: %w", instanceID, err)
	}

	for _, reservation := range result.Reservations {
		for _, instance := range reservation.Instances {
			if aws.ToString(instance.InstanceId) == instanceID {
				return instance, nil
			}
		}
	}
	return types.Instance{}, fmt.Errorf("ec2 %s: %w", instanceID, provider.ErrInstanceNotFound)
}

// GetStatus returns the normalized state of the instance
func (c *EC2Client) GetStatus(ctx context.Context, instanceID string) (provider.Status, error) {
	instance, err := c.describeInstance(ctx, instanceID)
	if err != nil {
		return provider.StatusUnknown, err
	}
	return ec2Status(instance.State), nil
}

// GetMetrics returns the latest CloudWatch GPU utilization for the instance.
// Utilization is only queried while the instance is running.
func (c *EC2Client) GetMetrics(ctx context.Context, instanceID string) (provider.Metrics, error) {
	status, err := c.GetStatus(ctx, instanceID)
	if err != nil {
		return provider.Metrics{}, err
	}
	if status != provider.StatusRunning {
		return provider.Metrics{Status: status, CollectedAt: c.now()}, nil
	}

	utilization, at, err := latestAverage(ctx, c.cwClient, metricQuery{
		namespace:  c.opts.MetricNamespace,
		metricName: c.opts.MetricName,
		dimensions: []cwTypes.Dimension{
			{
				Name:  aws.String("InstanceId"),
				Value: aws.String(instanceID),
			},
		},
		window: c.opts.MetricWindow,
		period: 60,
	}, c.now())
	if err != nil {
		return provider.Metrics{}, err
	}

	return provider.Metrics{
		GPUUtilizationPercent: utilization,
		Status:                status,
		CollectedAt:           at,
	}, nil
}

// Pause stops (or hibernates) the instance
func (c *EC2Client) Pause(ctx context.Context, instanceID string) error {
	input := &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	}
	if c.opts.Hibernate {
		input.Hibernate = aws.Bool(true)
	}

	if _, err := c.client.StopInstances(ctx, input); err != nil {
		if isAPIError(err, "InvalidInstanceID.NotFound") {
			return fmt.Errorf("ec2 %s: %w", instanceID, provider.ErrInstanceNotFound)
		}
		return fmt.Errorf("error stopping EC2 instance %s: %w", instanceID, err)
	}
	return nil
}

// Resume starts a stopped instance
func (c *EC2Client) Resume(ctx context.Context, instanceID string) error {
	_, err := c.client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		if isAPIError(err, "InvalidInstanceID.NotFound") {
			return fmt.Errorf("ec2 %s: %w", instanceID, provider.ErrInstanceNotFound)
		}
		return fmt.Errorf("error starting EC2 instance %s: %w", instanceID, err)
	}
	return nil
}

// Delete terminates the instance
func (c *EC2Client) Delete(ctx context.Context, instanceID string) error {
	_, err := c.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		if isAPIError(err, "InvalidInstanceID.NotFound") {
			return fmt.Errorf("ec2 %s: %w", instanceID, provider.ErrInstanceNotFound)
		}
		return fmt.Errorf("error terminating EC2 instance %s: %w", instanceID, err)
	}
	return nil
}

// GetRunningGPUInstances returns every running GPU instance in the region
// with its current utilization and hourly price. Instances without
// utilization data are reported with MetricsAvailable=false and never
// flagged idle.
func (c *EC2Client) GetRunningGPUInstances(ctx context.Context, prices *pricing.Client, usageThreshold float64) ([]models.GPUInstanceInfo, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{"running"},
			},
			{
				Name:   aws.String("instance-type"),
				Values: utils.GetInstanceTypePatterns(""),
			},
		},
	}

	instances := []models.GPUInstanceInfo{}
	paginator := ec2.NewDescribeInstancesPaginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying EC2 instances: %w", err)
		}

		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				instances = append(instances, c.gpuInstanceInfo(ctx, instance, prices, usageThreshold))
			}
		}
	}

	return instances, nil
}

func (c *EC2Client) gpuInstanceInfo(ctx context.Context, instance types.Instance, prices *pricing.Client, usageThreshold float64) models.GPUInstanceInfo {
	instanceID := aws.ToString(instance.InstanceId)
	instanceType := string(instance.InstanceType)

	info := models.GPUInstanceInfo{
		InstanceID:    instanceID,
		Name:          utils.GetName(instance.Tags),
		InstanceType:  instanceType,
		GPUType:       utils.GetGPUType(instanceType),
		Region:        c.region,
		OwnerID:       utils.GetOwner(instance.Tags),
		LaunchTime:    aws.ToTime(instance.LaunchTime),
		PricingSource: string(pricing.PricingSourceNA),

		AutoPauseEnabled: utils.AutoPauseEnabled(instance.Tags),
	}
	if instance.Placement != nil {
		info.AvailabilityZone = aws.ToString(instance.Placement.AvailabilityZone)
	}

	if m, err := c.GetMetrics(ctx, instanceID); err == nil {
		info.GPUUtilizationPercent = m.GPUUtilizationPercent
		info.MetricsAvailable = true
		info.IsIdle = m.GPUUtilizationPercent < usageThreshold
	}

	if prices != nil {
		rate, source := prices.HourlyRate(ctx, pricing.RateQuery{
			ProviderKind: string(provider.KindVM),
			GPUType:      info.GPUType,
			InstanceType: instanceType,
			Region:       c.region,
		})
		info.HourlyRate = rate
		info.EstimatedMonthlyCost = pricing.MonthlyCost(rate)
		info.PricingSource = string(source)
	}

	return info
}

// ec2Status maps EC2 instance states onto provider statuses
func ec2Status(state *types.InstanceState) provider.Status {
	if state == nil {
		return provider.StatusUnknown
	}
	switch state.Name {
	case types.InstanceStateNamePending:
		return provider.StatusPending
	case types.InstanceStateNameRunning:
		return provider.StatusRunning
	case types.InstanceStateNameStopping:
		return provider.StatusStopping
	case types.InstanceStateNameStopped:
		return provider.StatusStopped
	case types.InstanceStateNameShuttingDown, types.InstanceStateNameTerminated:
		return provider.StatusTerminated
	default:
		return provider.StatusUnknown
	}
}
