package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// printTimestamp prints the scan timestamp and duration
func printTimestamp(w io.Writer, scanStartTime time.Time, scanDuration time.Duration) {
	timeStr := scanStartTime.Format("2006-01-02 15:04:05")
	durationStr := fmt.Sprintf("%.2fs", scanDuration.Seconds())

	fmt.Fprintf(w, "Scan completed at %s (took %s)\n", timeStr, durationStr)
}

// formatUSD renders a dollar amount with thousands separators and two decimals
func formatUSD(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// formatHours renders an hour count with one decimal
func formatHours(h float64) string {
	return humanize.FormatFloat("#,###.#", h) + "h"
}

// formatOptionalTime renders t as a relative time, or "-" when unset
func formatOptionalTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(*t)
}

// truncateString truncates s to maxWidth display columns and adds "..." if necessary
func truncateString(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadString right-pads a string with spaces to the specified display width
func PadString(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// GetPricingMarker returns a suitable marker for the pricing source
func GetPricingMarker(source string) string {
	switch source {
	case "API":
		return "API"
	case "Cache":
		return "CACHE"
	case "Config":
		return "CONFIG"
	case "Default":
		return "DEFAULT"
	case "N/A":
		return "N/A"
	default:
		return "-"
	}
}
