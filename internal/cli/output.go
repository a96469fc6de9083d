package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// printTable writes tabular data using aligned columns.
func printTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, h)
	}
	fmt.Fprintln(tw)
	for _, row := range rows {
		for i, col := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, col)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// printJSON writes the value as pretty-printed JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML writes the value as YAML.
func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

// printOutput dispatches to JSON, YAML, or table output based on format.
// For table output each item of list is converted to a row by toRow.
func printOutput[T any](w io.Writer, format string, list []T, headers []string, toRow func(T) []string) error {
	switch format {
	case "json":
		return errors.Wrap(printJSON(w, list), "failed to encode JSON")
	case "yaml":
		return errors.Wrap(printYAML(w, list), "failed to encode YAML")
	case "table", "":
		rows := make([][]string, len(list))
		for i, item := range list {
			rows[i] = toRow(item)
		}
		return printTable(w, headers, rows)
	default:
		return errors.Newf("unsupported output format: %s", format)
	}
}

// formatAge returns a human-readable duration string relative to the given
// time, such as "5s", "3m", "2h", "4d". Returns "<unknown>" for zero times.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "<unknown>"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
