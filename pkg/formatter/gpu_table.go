package formatter

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/younsl/autopaused/internal/models"
)

// PrintGPUInstancesTable prints a formatted table of running GPU instances
func PrintGPUInstancesTable(out io.Writer, instances []models.GPUInstanceInfo, scanTime time.Time, scanDuration time.Duration) {
	if len(instances) == 0 {
		fmt.Fprintln(out, "No running GPU instances found.")
		return
	}

	// Idle instances first, then by monthly cost (highest first)
	sort.SliceStable(instances, func(i, j int) bool {
		if instances[i].IsIdle != instances[j].IsIdle {
			return instances[i].IsIdle
		}
		return instances[i].EstimatedMonthlyCost > instances[j].EstimatedMonthlyCost
	})

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)

	printTimestamp(w, scanTime, scanDuration)
	fmt.Fprintln(w, "INSTANCE ID\tNAME\tTYPE\tGPU\tREGION\tOWNER\tAUTOPAUSE\tLAUNCHED\tGPU UTIL\tSTATUS\tRATE/HR\tCOST/MO\tPRICING")

	for _, instance := range instances {
		util := "N/A"
		if instance.MetricsAvailable {
			util = fmt.Sprintf("%.1f%%", instance.GPUUtilizationPercent)
		}

		status := "Active"
		if instance.IsIdle {
			status = "Idle"
		}

		rate, monthly := "N/A", "N/A"
		if instance.PricingSource != "N/A" {
			rate = formatUSD(instance.HourlyRate)
			monthly = formatUSD(instance.EstimatedMonthlyCost)
		}

		autoPause := "no"
		if instance.AutoPauseEnabled {
			autoPause = "yes"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			instance.InstanceID,
			getInstanceName(instance.Name),
			instance.InstanceType,
			instance.GPUType,
			instance.Region,
			orDash(instance.OwnerID),
			autoPause,
			humanize.Time(instance.LaunchTime),
			util,
			status,
			rate,
			monthly,
			GetPricingMarker(instance.PricingSource),
		)
	}

	printGPUTotals(w, instances)

	w.Flush()
}

// getInstanceName returns a formatted instance name or <unnamed> if empty
func getInstanceName(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return truncateString(name, 40)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printGPUTotals prints the summary line at the bottom of the table
func printGPUTotals(w io.Writer, instances []models.GPUInstanceInfo) {
	var totalMonthlyCost, idleMonthlyCost float64
	idle := 0
	for _, instance := range instances {
		totalMonthlyCost += instance.EstimatedMonthlyCost
		if instance.IsIdle {
			idle++
			idleMonthlyCost += instance.EstimatedMonthlyCost
		}
	}

	fmt.Fprintf(w, "Total: %d instances (%d idle)\t\t\t\t\t\t\t\t\t\t\t%s\t\n",
		len(instances), idle, formatUSD(totalMonthlyCost))
	fmt.Fprintf(w, "Idle cost/month:\t\t\t\t\t\t\t\t\t\t\t%s\t\n", formatUSD(idleMonthlyCost))
}

// PrintGPUSummary prints instance counts and monthly cost per GPU type
func PrintGPUSummary(out io.Writer, instances []models.GPUInstanceInfo) {
	if len(instances) == 0 {
		return
	}

	type row struct {
		count, idle int
		cost        float64
	}
	byGPU := make(map[string]*row)
	for _, instance := range instances {
		r, ok := byGPU[instance.GPUType]
		if !ok {
			r = &row{}
			byGPU[instance.GPUType] = r
		}
		r.count++
		r.cost += instance.EstimatedMonthlyCost
		if instance.IsIdle {
			r.idle++
		}
	}

	gpus := make([]string, 0, len(byGPU))
	for gpu := range byGPU {
		gpus = append(gpus, gpu)
	}
	sort.Strings(gpus)

	fmt.Fprintln(out, "\n## GPU Instances Summary")

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "GPU\tINSTANCES\tIDLE\tCOST/MO")
	for _, gpu := range gpus {
		r := byGPU[gpu]
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", gpu, r.count, r.idle, formatUSD(r.cost))
	}
	w.Flush()
}
