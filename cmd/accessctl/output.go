package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
)

// printJSON writes v indented.
func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes a header and rows aligned in columns.
func (c *cli) printTable(header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for _, r := range rows {
		writeRow(tw, r)
	}
	return tw.Flush()
}

func writeRow(tw *tabwriter.Writer, cols []string) {
	for i, col := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
}

// render prints v as JSON when --json is set, otherwise as a table.
func (c *cli) render(v any, header []string, rows [][]string) error {
	if c.jsonOut {
		return c.printJSON(v)
	}
	return c.printTable(header, rows)
}

func (c *cli) success(format string, args ...any) {
	if c.jsonOut {
		return
	}
	fmt.Fprintf(c.out, format+"\n", args...)
}
