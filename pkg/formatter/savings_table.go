package formatter

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/younsl/autopaused/internal/models"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatUpper
	t.Style().Format.Footer = text.FormatUpper
	return t
}

var numericColumn = table.ColumnConfig{Align: text.AlignRight, AlignFooter: text.AlignRight}

// PrintSavingsTable prints the per-instance AutoPause savings
func PrintSavingsTable(out io.Writer, reports []models.SavingsReport) {
	if len(reports) == 0 {
		fmt.Fprintln(out, "No instances are monitored by AutoPause.")
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Instance", "Owner", "Phase", "Pauses", "Paused", "Savings", "Last Paused"})

	var totalSavings, totalHours float64
	var totalPauses int
	for _, r := range reports {
		t.AppendRow(table.Row{
			r.InstanceID,
			r.OwnerID,
			string(r.CurrentPhase),
			r.PauseCount,
			formatHours(r.TotalPausedHours),
			formatUSD(r.TotalSavings),
			formatOptionalTime(r.LastPausedAt),
		})
		totalSavings += r.TotalSavings
		totalHours += r.TotalPausedHours
		totalPauses += r.PauseCount
	}

	t.AppendFooter(table.Row{"Total", "", "", totalPauses, formatHours(totalHours), formatUSD(totalSavings), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		withNumber(4), withNumber(5), withNumber(6),
	})
	t.Render()
}

// PrintOwnerSavingsTable prints journal savings aggregated per owner
func PrintOwnerSavingsTable(out io.Writer, owners []models.OwnerSavings) {
	if len(owners) == 0 {
		fmt.Fprintln(out, "No pause events recorded yet.")
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Owner", "Instances", "Pauses", "Paused", "Savings", "Last Resume"})

	var total float64
	for _, o := range owners {
		t.AppendRow(table.Row{
			o.OwnerID,
			o.InstanceCount,
			humanize.Comma(int64(o.PauseCount)),
			formatHours(o.PausedHours),
			formatUSD(o.Savings),
			formatOptionalTime(o.LastResumeAt),
		})
		total += o.Savings
	}

	t.AppendFooter(table.Row{"Total", "", "", "", formatUSD(total), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		withNumber(2), withNumber(3), withNumber(4), withNumber(5),
	})
	t.Render()
}

func withNumber(col int) table.ColumnConfig {
	c := numericColumn
	c.Number = col
	return c
}

// PrintEventsTable prints journal entries, newest first
func PrintEventsTable(out io.Writer, events []models.PauseEvent) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No pause events recorded yet.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tINSTANCE\tOWNER\tEVENT\tREASON\tRATE/HR\tPAUSED\tSAVINGS")
	for _, ev := range events {
		paused, savings := "-", "-"
		if ev.Kind == models.PauseEventResume {
			paused = formatHours(ev.PausedSeconds / 3600)
			savings = formatUSD(ev.Savings)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.At.Format("2006-01-02 15:04:05"),
			ev.InstanceID,
			orDash(ev.OwnerID),
			string(ev.Kind),
			orDash(ev.Reason),
			formatUSD(ev.HourlyRate),
			paused,
			savings,
		)
	}
	w.Flush()
}

// PrintAnalytics prints the fleet-wide AutoPause summary
func PrintAnalytics(out io.Writer, a models.Analytics) {
	rows := [][2]string{
		{"Monitored instances", humanize.Comma(int64(a.MonitoredCount))},
		{"Paused instances", humanize.Comma(int64(a.PausedCount))},
		{"Pause efficiency", fmt.Sprintf("%.1f%%", a.PauseEfficiencyPercent)},
		{"Total paused", formatHours(a.TotalPauseHours)},
		{"Total savings", formatUSD(a.TotalSavingsAllTime)},
		{"Average per instance", formatUSD(a.AverageSavingsPerInstance)},
	}
	for _, r := range rows {
		fmt.Fprintf(out, "%s %s\n", PadString(r[0]+":", 24), r[1])
	}
}

// PrintEstimate prints the provider choice and savings estimate for a GPU type
func PrintEstimate(out io.Writer, providerName string, est models.SavingsEstimate) {
	fmt.Fprintf(out, "%s %s\n", PadString("Provider:", 24), providerName)
	fmt.Fprintf(out, "%s %s\n", PadString("GPU:", 24), est.GPUType)
	fmt.Fprintf(out, "%s %s\n", PadString("Active hours/month:", 24), humanize.FormatFloat("#,###.#", est.ActiveHoursPerMonth))

	t := newTable(out)
	t.AppendHeader(table.Row{"Model", "Rate/hr", "Cost/mo"})
	t.AppendRow(table.Row{"Always-on dedicated", formatUSD(est.DedicatedHourlyRate), formatUSD(est.AlwaysOnMonthlyCost)})
	t.AppendRow(table.Row{"Pay per active hour", formatUSD(est.ServerlessRate), formatUSD(est.ActiveMonthlyCost)})
	t.AppendFooter(table.Row{"Savings", fmt.Sprintf("%.1f%%", est.SavingsPercent), formatUSD(est.MonthlySavings)})
	t.SetColumnConfigs([]table.ColumnConfig{withNumber(2), withNumber(3)})
	t.Render()
}
