package checks

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var title = cases.Title(language.English)

// WriteTable renders r as an aligned table followed by a summary line.
func WriteTable(w io.Writer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(tw, "PHASE\tSERVICE\tCHECK\tSTATUS\tEXPECTED\tACTUAL\tMESSAGE"); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, c := range r.Checks {
		service := c.Service
		if service == "" {
			service = "-"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			title.String(string(c.Phase)), service, c.Name, title.String(string(c.Status)),
			c.Expected, c.Actual, c.Message); err != nil {
			return fmt.Errorf("failed to write table row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\n%s: %d passed, %d warnings, %d failed, %d skipped (namespace %s)\n",
		title.String(string(r.Summary.Status)), r.Summary.Passed, r.Summary.Warnings,
		r.Summary.Failed, r.Summary.Skipped, r.Namespace)
	return err
}
