package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ignite/paybench/internal/api"
)

// maxIssueRows caps the issue listing in text output.
const maxIssueRows = 50

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

func printView(w io.Writer, v *api.SessionView, st stage) {
	fmt.Fprintf(w, "File:     %s\n", v.FileName)
	fmt.Fprintf(w, "Type:     %s\n", v.DataType)
	fmt.Fprintf(w, "Rows:     %d\n", v.RowCount)
	fmt.Fprintf(w, "State:    %s\n", v.State)
	for _, warn := range v.ParseWarnings {
		fmt.Fprintf(w, "Warning:  %s\n", warn)
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tHEADER\tFIELD\tTIER\tCONFIDENCE\tSAMPLES")
	if v.Mapping != nil {
		for _, c := range v.Mapping.Columns {
			field := c.TargetField
			if field == "" {
				field = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.1f\t%s\n",
				c.SourceIndex+1, c.SourceColumn, field, c.Tier, c.Confidence, strings.Join(c.SampleValues, ", "))
		}
	}
	tw.Flush()

	if len(v.Missing) > 0 {
		fmt.Fprintf(w, "\nMissing required: %s\n", strings.Join(v.Missing, "; "))
	}
	for _, c := range v.Conflicts {
		cols := make([]string, len(c.Columns))
		for i, idx := range c.Columns {
			cols[i] = fmt.Sprint(idx + 1)
		}
		fmt.Fprintf(w, "Conflict: %s is mapped from columns %s\n", c.Field, strings.Join(cols, ", "))
	}
	if st == stageInspect {
		return
	}

	if s := v.Summary; s != nil {
		fmt.Fprintf(w, "\nSummary: %d rows, %d valid, %d with warnings, %d invalid, %d excluded, %d dropped, %d ready\n",
			s.Total, s.Valid, s.WithWarnings, s.Invalid, s.Excluded, s.Dropped, s.Ready)
	}
	if len(v.Issues) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ROW\tFIELD\tSEVERITY\tMESSAGE")
		for i, r := range v.Issues {
			if i == maxIssueRows {
				fmt.Fprintf(tw, "...\t\t\t%d more rows with issues\n", len(v.Issues)-maxIssueRows)
				break
			}
			for _, is := range r.Issues {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.RowIndex+1, is.Field, is.Severity, is.Message)
			}
		}
		tw.Flush()
	}

	if res := v.Result; res != nil {
		fmt.Fprintf(w, "\nInserted: %d\n", res.InsertedCount)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "Error:    %s\n", e)
		}
	}
	if v.Error != "" {
		fmt.Fprintf(w, "\nError:    %s\n", v.Error)
	}
}
