package main

import (
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/census-microdata-etl/internal/pipeline"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
)

// writeReport prints what the run did, one line per outcome, then a table of
// committed rows per sub-table.
func writeReport(w io.Writer, r pipeline.Report) {
	fmt.Fprintf(w, "State: %s\n", r.State)
	if r.Query != "" {
		fmt.Fprintf(w, "Request: %s\n", r.Query)
	}
	fmt.Fprintf(w, "Records fetched: %d\n", r.Records)

	switch r.Load.Status {
	case pipeline.LoadSucceeded:
		fmt.Fprintln(w, "Write to database was successful.")
	case pipeline.LoadFailed:
		fmt.Fprintf(w, "Write to database was unsuccessful: %v\n", r.Load.Err)
	default:
		fmt.Fprintln(w, "Write to database was not attempted.")
	}

	switch {
	case r.Exported():
		fmt.Fprintf(w, "CSV written to %s\n", r.CSVPath)
	case r.ExportErr != nil:
		fmt.Fprintf(w, "CSV export failed: %v\n", r.ExportErr)
	}

	if r.PublishEnabled {
		switch {
		case r.Load.Status != pipeline.LoadSucceeded:
			fmt.Fprintln(w, "Publish skipped, nothing was committed.")
		case r.PublishErr != nil:
			fmt.Fprintf(w, "Published %d records before failing: %v\n", r.Published, r.PublishErr)
		default:
			fmt.Fprintf(w, "Published %d records.\n", r.Published)
		}
	}

	if len(r.Load.Tables) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.Style().Format.Header = text.FormatDefault
		t.Style().Format.Footer = text.FormatDefault
		t.AppendHeader(table.Row{"Table", "Rows"})
		for _, tc := range r.Load.Tables {
			t.AppendRow(table.Row{tc.Table, tc.Rows})
		}
		t.AppendFooter(table.Row{"Total", r.Load.Rows()})
		t.Render()
	}

	fmt.Fprintf(w, "Finished in %s\n", r.Duration().Round(time.Millisecond))
}
