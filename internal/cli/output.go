package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/attendance-api/internal/models"
)

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func printMetrics(w io.Writer, m models.MetricsSnapshot) error {
	return printTable(w, []string{"METRIC", "VALUE"}, [][]string{
		{"Total students", fmt.Sprint(m.TotalStudents)},
		{"Today's attendance", fmt.Sprint(m.TodayAttendance)},
		{"Total attendance", fmt.Sprint(m.TotalAttendance)},
		{"Average attendance", fmt.Sprintf("%d%%", m.AverageAttendance)},
	})
}

func sortedIDs(totals map[string]int) []string {
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// printNotifier writes flow notifications with plain prefixes.
type printNotifier struct {
	out io.Writer
	err io.Writer
}

func (n printNotifier) Success(msg string) { fmt.Fprintf(n.out, "[ok] %s\n", msg) }
func (n printNotifier) Info(msg string)    { fmt.Fprintf(n.out, "[info] %s\n", msg) }
func (n printNotifier) Error(msg string)   { fmt.Fprintf(n.err, "[error] %s\n", msg) }
