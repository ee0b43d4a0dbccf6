// Package report renders the result of a stats run for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/naka-gawa/github-pr-stats/internal/domain"
)

// Report is everything printed after a successful fetch.
type Report struct {
	Repository    string        `json:"repository"`
	State         string        `json:"state"`
	Fetched       int           `json:"fetched"`
	Elapsed       time.Duration `json:"-"`
	TotalEstimate int           `json:"total_estimate"`
	// ExactCount is set when the exact count was requested from the GraphQL API.
	ExactCount *int           `json:"exact_count,omitempty"`
	Summary    domain.Summary `json:"-"`
}

// jsonReport mirrors Report with durations expressed in seconds.
type jsonReport struct {
	Report
	ElapsedSeconds float64              `json:"elapsed_seconds"`
	TopAuthors     []domain.AuthorCount `json:"top_authors"`
	Turnaround     *jsonTurnaround      `json:"turnaround"`
}

type jsonTurnaround struct {
	Count         int     `json:"count"`
	MinSeconds    float64 `json:"min_seconds"`
	MaxSeconds    float64 `json:"max_seconds"`
	MedianSeconds float64 `json:"median_seconds"`
	MeanSeconds   float64 `json:"mean_seconds"`
}

// Render writes r to w in the given format: "text", "json" or "table".
func Render(w io.Writer, format string, r Report) error {
	switch format {
	case "json":
		return renderJSON(w, r)
	case "table":
		renderTable(w, r)
		return nil
	case "text", "":
		return renderText(w, r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderText(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Fetched %d PRs in %.2fs\n", r.Fetched, r.Elapsed.Seconds())
	fmt.Fprintf(&b, "Estimated total PRs %d\n", r.TotalEstimate)
	if r.ExactCount != nil {
		fmt.Fprintf(&b, "Exact total PRs %d\n", *r.ExactCount)
	}
	fmt.Fprintf(&b, "Top %d PR authors %s\n", len(r.Summary.TopAuthors), formatAuthors(r.Summary.TopAuthors))
	fmt.Fprintf(&b, "Smallest time-to-close %s\n", formatTurnaround(r.Summary.Turnaround, r.Summary.Turnaround.Min))
	fmt.Fprintf(&b, "Biggest time-to-close %s\n", formatTurnaround(r.Summary.Turnaround, r.Summary.Turnaround.Max))
	_, err := io.WriteString(w, b.String())
	return err
}

func renderJSON(w io.Writer, r Report) error {
	out := jsonReport{
		Report:         r,
		ElapsedSeconds: r.Elapsed.Seconds(),
		TopAuthors:     r.Summary.TopAuthors,
	}
	if t := r.Summary.Turnaround; t.HasData {
		out.Turnaround = &jsonTurnaround{
			Count:         t.Count,
			MinSeconds:    t.Min.Seconds(),
			MaxSeconds:    t.Max.Seconds(),
			MedianSeconds: t.Median.Seconds(),
			MeanSeconds:   t.Mean.Seconds(),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderTable(w io.Writer, r Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Repository", r.Repository})
	table.Append([]string{"State", r.State})
	table.Append([]string{"Fetched PRs", strconv.Itoa(r.Fetched)})
	table.Append([]string{"Elapsed", fmt.Sprintf("%.2fs", r.Elapsed.Seconds())})
	table.Append([]string{"Estimated total PRs", strconv.Itoa(r.TotalEstimate)})
	if r.ExactCount != nil {
		table.Append([]string{"Exact total PRs", strconv.Itoa(*r.ExactCount)})
	}
	t := r.Summary.Turnaround
	table.Append([]string{"Smallest time-to-close", formatTurnaround(t, t.Min)})
	table.Append([]string{"Biggest time-to-close", formatTurnaround(t, t.Max)})
	table.Append([]string{"Median time-to-close", formatTurnaround(t, t.Median)})
	table.Append([]string{"Mean time-to-close", formatTurnaround(t, t.Mean)})
	table.Render()

	authors := tablewriter.NewWriter(w)
	authors.SetHeader([]string{"Rank", "Author", "PRs"})
	for i, ac := range r.Summary.TopAuthors {
		authors.Append([]string{strconv.Itoa(i + 1), ac.Author, strconv.Itoa(ac.Count)})
	}
	authors.Render()
}

func formatAuthors(authors []domain.AuthorCount) string {
	parts := make([]string, 0, len(authors))
	for _, ac := range authors {
		parts = append(parts, fmt.Sprintf("[%s %d]", ac.Author, ac.Count))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatTurnaround(t domain.TurnaroundStats, d time.Duration) string {
	if !t.HasData {
		return "no data"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}
