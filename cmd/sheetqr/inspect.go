package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		flags      sheetFlags
		rows       int
		sampleRows int
	)
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "List sheets, detected URL columns and the first rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := flags.logger()
			wb, selected, err := flags.openWorkbook(cmd.Context(), args[0], logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", wb.FileName, wb.Format)
			for _, rs := range wb.Sheets() {
				if flags.sheet != "" && rs != selected {
					continue
				}
				writeSheet(out, rs, core.Classify(rs, sampleRows), rows)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&rows, "rows", 5, "Rows to preview per sheet")
	cmd.Flags().IntVar(&sampleRows, "sample-rows", core.DefaultSampleRows, "Values sampled per column when detecting URLs")
	return cmd
}

func writeSheet(w io.Writer, rs *core.RowSet, class core.ColumnClassification, rows int) {
	fmt.Fprintf(w, "\nSheet %q: %d rows\n", rs.Name(), rs.Len())
	fmt.Fprintf(w, "  columns: %s\n", strings.Join(rs.Columns(), ", "))
	if suggested, ok := class.Suggested(); ok {
		fmt.Fprintf(w, "  url columns: %s (suggested: %s)\n", strings.Join(class.URLColumns, ", "), suggested)
	} else {
		fmt.Fprintln(w, "  url columns: none detected, pass --url-column to generate")
	}

	if rows <= 0 {
		return
	}
	if rows > rs.Len() {
		rows = rs.Len()
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := rs.Columns()
	fmt.Fprintln(tw, "  "+strings.Join(cols, "\t"))
	for i := 0; i < rows; i++ {
		vals := make([]string, len(cols))
		for c, name := range cols {
			cell, _ := rs.Cell(i, name)
			vals[c] = cell.Text
		}
		fmt.Fprintln(tw, "  "+strings.Join(vals, "\t"))
	}
	tw.Flush()
}
