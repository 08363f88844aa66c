// Package report renders estimation results for humans (table) and machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// Format output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name; empty means table
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (table|json)", s)
	}
}

const dateLayout = "2006-01-02"

// Write dispatches on format
func Write(w io.Writer, format Format, result *contracts.CompositeResult) error {
	if format == FormatJSON {
		return WriteJSON(w, result)
	}
	return WriteTable(w, result)
}

// WriteBatch dispatches on format
func WriteBatch(w io.Writer, format Format, items []contracts.BatchItem) error {
	if format == FormatJSON {
		return WriteJSON(w, items)
	}
	return WriteBatchTable(w, items)
}

// WriteJSON writes any value as indented JSON
func WriteJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteTable writes the headline, the per-method estimates and, when present,
// the completion report
func WriteTable(w io.Writer, result *contracts.CompositeResult) error {
	if result == nil {
		return fmt.Errorf("no result to render")
	}

	if err := writeHeadline(w, result); err != nil {
		return err
	}

	if result.Completion != nil {
		return writeCompletion(w, result.Completion)
	}

	if len(result.Estimates) > 0 {
		if err := writeEstimates(w, result); err != nil {
			return err
		}
	}

	if result.Integration != nil && len(result.Integration.Recommendations) > 0 {
		if _, err := fmt.Fprintln(w, "Recommendations:"); err != nil {
			return err
		}
		for _, r := range result.Integration.Recommendations {
			if _, err := fmt.Fprintf(w, "  - %s\n", r); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeHeadline(w io.Writer, r *contracts.CompositeResult) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Field", "Value"})

	rows := [][]string{
		{"Run", r.RunID},
		{"Mode", string(r.Mode)},
	}
	if r.ItemID != "" {
		rows = append(rows, []string{"Item", r.ItemID})
	}
	rows = append(rows,
		[]string{"Progress", fmt.Sprintf("%s / %s (%s%%)",
			fmtFloat(r.Project.CurrentPoints), fmtFloat(r.Project.TargetPoints), fmtFloat(r.Project.CompletionRate()))},
		[]string{"Status", string(r.Status)},
		[]string{"Method", string(r.Method)},
		[]string{"Estimated date", r.EstimatedDate.Format(dateLayout)},
		[]string{"Days remaining", fmtFloat(r.DaysRemaining)},
		[]string{"Confidence", fmtPercent(r.Confidence)},
		[]string{"Uncertainty (days)", "±" + fmtFloat(r.UncertaintyDays)},
		[]string{"Data quality", string(r.Summary.Quality)},
		[]string{"Trend", r.Summary.Trend},
	)

	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeEstimates(w io.Writer, r *contracts.CompositeResult) error {
	methods := make([]contracts.Method, 0, len(r.Estimates))
	for m := range r.Estimates {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Rank() < methods[j].Rank() })

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Method", "Status", "Date", "Days", "Confidence", "±Days", "Velocity", "Reliability", "Weight"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, m := range methods {
		e := r.Estimates[m]
		row := []string{
			string(m),
			string(e.Status),
			e.EstimatedDate.Format(dateLayout),
			fmtFloat(e.DaysRemaining),
			fmtPercent(e.Confidence),
			fmtFloat(e.UncertaintyDays),
			fmtFloat(e.DailyVelocity),
			"-",
			"-",
		}
		if r.Integration != nil {
			if rel, ok := r.Integration.Reliability[m]; ok {
				row[7] = fmtFloat(rel)
			}
			if wt, ok := r.Integration.Ensemble.MethodWeights[m]; ok {
				row[8] = fmtPercent(wt)
			}
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if r.Integration != nil {
		c := r.Integration.Consistency
		if _, err := fmt.Fprintf(w, "Consistency: %s (range %s days, cv %s, %d methods)\n",
			c.Tier, fmtFloat(c.DateRangeDays), fmtFloat(c.CoefficientOfVariation), c.MethodCount); err != nil {
			return err
		}
	}
	return nil
}

func writeCompletion(w io.Writer, c *contracts.CompletionReport) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Completion", "Value"})

	rows := [][]string{
		{"Completion rate", fmtFloat(c.CompletionRate) + "%"},
		{"Category", string(c.Category)},
	}
	if !c.Minimal {
		rows = append(rows,
			[]string{"Excess points", fmtFloat(c.ExcessPoints)},
			[]string{"Excess rate", fmtFloat(c.ExcessRate) + "%"},
			[]string{"Days early", strconv.Itoa(c.DaysEarly)},
			[]string{"Efficiency", fmtFloat(c.EfficiencyScore)},
		)
		if c.ActualCompletionDate != nil {
			rows = append(rows, []string{"Completed on", c.ActualCompletionDate.Format(dateLayout)})
		}
	}

	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// WriteBatchTable one row per item; failed items show their error
func WriteBatchTable(w io.Writer, items []contracts.BatchItem) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Item", "Target", "Current", "Status", "Date", "Days", "Confidence", "Method"})

	var data [][]string
	failed := 0
	for _, it := range items {
		if it.Result == nil {
			failed++
			data = append(data, []string{it.ItemID, fmtFloat(it.TargetPoints), "-", "failed", "-", "-", "-", it.Error})
			continue
		}
		r := it.Result
		data = append(data, []string{
			it.ItemID,
			fmtFloat(r.Project.TargetPoints),
			fmtFloat(r.Project.CurrentPoints),
			string(r.Status),
			r.EstimatedDate.Format(dateLayout),
			fmtFloat(r.DaysRemaining),
			fmtPercent(r.Confidence),
			string(r.Method),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d items, %d failed\n", len(items), failed)
	return err
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func fmtPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}
