// Package output provides utilities for formatting and displaying simulation results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/iwvelando/risk-forecast/pkg/format"
	"github.com/iwvelando/risk-forecast/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// histogramWidth is the widest bar drawn by PrettyFormat.
const histogramWidth = 40

// PrettyFormat writes a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, result *simulation.Result) error {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	contingency := result.TargetValue - result.Base
	fmt.Fprintf(&b, "--- Risk exposure over %d iterations (seed %d) ---\n", len(result.Distribution), result.Settings.Seed)
	fmt.Fprintf(&b, "Base estimate:   %s\n", format.Currency(result.Base))
	fmt.Fprintf(&b, "Mean outcome:    %s (std dev %s)\n", format.Currency(result.Mean), format.Currency(result.StdDev))
	fmt.Fprintf(&b, "Range:           %s to %s\n", format.Currency(result.Min), format.Currency(result.Max))
	fmt.Fprintf(&b, "P%d target:      %s (contingency %s, %.1f%% of base)\n",
		result.TargetPercentile, format.Currency(result.TargetValue), format.Currency(contingency),
		mathutil.CalculatePercentage(contingency, result.Base))
	_, _ = p.Fprintf(&b, "Risks analyzed:  %d of %d\n", result.RisksAnalyzed, result.TotalRisks)

	b.WriteString("\nPercentile | Value           | Vs. base\n")
	b.WriteString("__________ | _______________ | _______________\n")
	for _, row := range result.PercentileTable {
		fmt.Fprintf(&b, "P%-9d | %15s | %15s\n", row.Percentile, format.Currency(row.Value), format.Currency(row.VarianceFromBase))
	}

	b.WriteString("\nRisk       | Variance share | Correlation\n")
	b.WriteString("__________ | ______________ | ___________\n")
	if len(result.Sensitivity) == 0 {
		b.WriteString("(no risk contributes variance)\n")
	}
	for _, entry := range result.Sensitivity {
		fmt.Fprintf(&b, "%-10s | %14s | %11.3f\n", entry.RiskID, format.Percent(entry.VarianceContribution), entry.Correlation)
	}

	b.WriteString("\nHistogram\n")
	peak := 0
	for _, bin := range result.Histogram {
		peak = max(peak, bin.Count)
	}
	for _, bin := range result.Histogram {
		bar := 0
		if peak > 0 {
			bar = bin.Count * histogramWidth / peak
		}
		fmt.Fprintf(&b, "%15s | %-40s %s\n", format.Currency(bin.BinMid), strings.Repeat("#", bar), p.Sprintf("%d", bin.Count))
	}

	for _, flag := range result.Flags {
		if flag.ClampedSamples > 0 {
			_, _ = p.Fprintf(&b, "\nNote: %d samples of cost-only risk %s were negative and clamped to zero\n", flag.ClampedSamples, flag.RiskID)
		}
		if flag.FlooredSamples > 0 {
			_, _ = p.Fprintf(&b, "\nNote: %d samples of risk %s fell below the sampling floor and were raised to it\n", flag.FlooredSamples, flag.RiskID)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// CsvFormat writes the percentile table and sensitivity ranking as
// comma-separated values, one section after the other.
func CsvFormat(w io.Writer, result *simulation.Result) error {
	var b strings.Builder

	b.WriteString(`"percentile","value","varianceFromBase"` + "\n")
	for _, row := range result.PercentileTable {
		fmt.Fprintf(&b, `"%d","%.2f","%.2f"`+"\n", row.Percentile, row.Value, row.VarianceFromBase)
	}

	b.WriteString("\n")
	b.WriteString(`"riskId","varianceContribution","correlation"` + "\n")
	for _, entry := range result.Sensitivity {
		fmt.Fprintf(&b, `"%s","%.6f","%.6f"`+"\n", csvEscape(entry.RiskID), entry.VarianceContribution, entry.Correlation)
	}

	b.WriteString("\n")
	b.WriteString(`"binStart","binEnd","count"` + "\n")
	for _, bin := range result.Histogram {
		fmt.Fprintf(&b, `"%.2f","%.2f","%d"`+"\n", bin.BinStart, bin.BinEnd, bin.Count)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// JSONFormat writes the complete result as indented JSON.
func JSONFormat(w io.Writer, result *simulation.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func csvEscape(value string) string {
	return strings.ReplaceAll(value, `"`, `""`)
}
