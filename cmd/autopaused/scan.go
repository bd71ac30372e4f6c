package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/younsl/autopaused/internal/config"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/pkg/aws"
	"github.com/younsl/autopaused/pkg/formatter"
	"github.com/younsl/autopaused/pkg/utils"
)

// startResourceSpinner creates and starts a spinner with a message for the given service
func startResourceSpinner(service string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Analyzing %s resources ...", service)
	s.Start()
	return s
}

func newScanCmd() *cobra.Command {
	var (
		regions     []string
		threshold   float64
		showSummary bool
		optedInOnly bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find running GPU EC2 instances and their current utilization",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.AutoPause.GPUUsageThreshold
			}

			if len(regions) == 0 {
				regions = []string{resolveRegion(cmd.Context(), cfg)}
			}

			var validRegions []string
			for _, region := range regions {
				if utils.IsValidRegion(region) {
					validRegions = append(validRegions, region)
				} else {
					fmt.Printf("Warning: Skipping invalid region '%s'\n", region)
				}
			}
			if len(validRegions) == 0 {
				fmt.Println("No valid regions specified. Exiting.")
				return nil
			}

			return processGPUScan(cmd.Context(), cfg, validRegions, threshold, showSummary, optedInOnly)
		},
	}

	cmd.Flags().StringSliceVarP(&regions, "regions", "r", nil,
		fmt.Sprintf("AWS regions to check (comma separated, default: %s)", utils.GetDefaultRegion()))
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0,
		"GPU utilization percent below which an instance counts as idle (default: autopause.gpu_usage_threshold)")
	cmd.Flags().BoolVarP(&showSummary, "summary", "s", false, "Show a per-GPU summary")
	cmd.Flags().BoolVar(&optedInOnly, "autopause-only", false,
		fmt.Sprintf("Only list instances tagged %s=true", utils.AutoPauseTagKey))
	return cmd
}

// processGPUScan scans every region in parallel and prints one combined table
func processGPUScan(ctx context.Context, cfg config.Config, regions []string, threshold float64, showSummary, optedInOnly bool) error {
	fmt.Printf("Starting GPU scan in %s ...\n", strings.Join(regions, ", "))
	scanStartTime := time.Now()

	prices := newPricingClient(ctx, cfg, zerolog.Nop())

	s := startResourceSpinner("GPU")

	results := make([]struct {
		instances []models.GPUInstanceInfo
		err       error
		region    string
	}, len(regions))

	var wg sync.WaitGroup
	for i, region := range regions {
		wg.Add(1)
		go func(idx int, r string) {
			defer wg.Done()
			results[idx].region = r

			client, err := aws.NewEC2Client(ctx, r, aws.EC2Options{
				GPUTypes:        cfg.AWS.EC2.GPUTypes,
				MetricNamespace: cfg.AWS.EC2.MetricNamespace,
				MetricName:      cfg.AWS.EC2.MetricName,
			})
			if err != nil {
				results[idx].err = err
				return
			}

			results[idx].instances, results[idx].err = client.GetRunningGPUInstances(ctx, prices, threshold)
		}(i, region)
	}

	wg.Wait()
	scanDuration := time.Since(scanStartTime)

	var all []models.GPUInstanceInfo
	for _, result := range results {
		if result.err == nil {
			all = append(all, result.instances...)
		}
	}
	if optedInOnly {
		all = optedIn(all)
	}

	s.FinalMSG = fmt.Sprintf("✓ [%d instances found] GPU resources analyzed - Completed in %.2f seconds\n",
		len(all), scanDuration.Seconds())
	s.Stop()

	for _, result := range results {
		if result.err != nil {
			fmt.Printf("Error in region %s: %v\n", result.region, result.err)
		}
	}

	formatter.PrintGPUInstancesTable(os.Stdout, all, scanStartTime, scanDuration)
	if showSummary {
		formatter.PrintGPUSummary(os.Stdout, all)
	}
	formatter.PrintPricingAPIStats(os.Stdout, prices.Stats())
	return nil
}

// optedIn keeps the instances that carry the AutoPause opt-in tag
func optedIn(instances []models.GPUInstanceInfo) []models.GPUInstanceInfo {
	var out []models.GPUInstanceInfo
	for _, instance := range instances {
		if instance.AutoPauseEnabled {
			out = append(out, instance)
		}
	}
	return out
}
