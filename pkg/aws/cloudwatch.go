package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/smithy-go"
	"github.com/younsl/autopaused/pkg/provider"
)

// CloudWatchAPI is the subset of the CloudWatch API used for utilization
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// metricQuery describes one GetMetricStatistics call
type metricQuery struct {
	namespace  string
	metricName string
	dimensions []cwTypes.Dimension
	window     time.Duration
	period     int32
	statistic  cwTypes.Statistic
}

func (q metricQuery) input(now time.Time) *cloudwatch.GetMetricStatisticsInput {
	return &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.namespace),
		MetricName: aws.String(q.metricName),
		Dimensions: q.dimensions,
		StartTime:  aws.Time(now.Add(-q.window)),
		EndTime:    aws.Time(now),
		Period:     aws.Int32(q.period),
		Statistics: []cwTypes.Statistic{q.statistic},
	}
}

// latestAverage returns the most recent Average datapoint in the window
func latestAverage(ctx context.Context, cw CloudWatchAPI, q metricQuery, now time.Time) (float64, time.Time, error) {
	q.statistic = cwTypes.StatisticAverage
	result, err := cw.GetMetricStatistics(ctx, q.input(now))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("error querying CloudWatch %s/%s: %w", q.namespace, q.metricName, err)
	}

	var points []cwTypes.Datapoint
	for _, dp := range result.Datapoints {
		if dp.Timestamp != nil && dp.Average != nil {
			points = append(points, dp)
		}
	}
	if len(points) == 0 {
		return 0, time.Time{}, fmt.Errorf("%s/%s: %w", q.namespace, q.metricName, provider.ErrNoDatapoints)
	}

	// Sort by timestamp (descending)
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.After(*points[j].Timestamp)
	})

	return *points[0].Average, *points[0].Timestamp, nil
}

// windowSum returns the Sum statistic over the whole window. No datapoints
// means nothing was recorded and yields 0.
func windowSum(ctx context.Context, cw CloudWatchAPI, q metricQuery, now time.Time) (float64, error) {
	q.statistic = cwTypes.StatisticSum
	result, err := cw.GetMetricStatistics(ctx, q.input(now))
	if err != nil {
		return 0, fmt.Errorf("error querying CloudWatch %s/%s: %w", q.namespace, q.metricName, err)
	}

	var total float64
	for _, dp := range result.Datapoints {
		if dp.Sum != nil {
			total += *dp.Sum
		}
	}
	return total, nil
}

// isAPIError reports whether err carries one of the given AWS error codes
func isAPIError(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
