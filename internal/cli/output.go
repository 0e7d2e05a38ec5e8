// Package cli provides output formatting and preview rendering for the egaku command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hyperjump/egaku/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteMatchResult writes a match result. Text output is the matched name or "None".
func WriteMatchResult(w io.Writer, result models.MatchResult, format OutputFormat) error {
	if format == OutputJSON {
		result.Name = result.String()
		return writeJSON(w, result)
	}
	if !result.Matched {
		_, err := fmt.Fprintln(w, models.NoMatch)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\t(distance %.6f)\n", result.Name, result.Distance)
	return err
}

// WriteRanking writes ranked references, closest first.
func WriteRanking(w io.Writer, ranked []models.RankedMatch, format OutputFormat) error {
	if format == OutputJSON {
		if ranked == nil {
			ranked = []models.RankedMatch{}
		}
		return writeJSON(w, ranked)
	}
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(w, models.NoMatch)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tDISTANCE")
	for _, r := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%.6f\n", r.Rank, r.Name, r.Distance)
	}
	return tw.Flush()
}

// WriteDrawings lists drawings without their points.
func WriteDrawings(w io.Writer, drawings []*models.Drawing, format OutputFormat) error {
	if format == OutputJSON {
		type entry struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
			Count       int    `json:"count"`
			SourcePath  string `json:"source_path,omitempty"`
		}
		out := make([]entry, len(drawings))
		for i, d := range drawings {
			out[i] = entry{Name: d.Name, Description: d.Description, Count: d.Count, SourcePath: d.SourcePath}
		}
		return writeJSON(w, out)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPOINTS\tDESCRIPTION")
	for _, d := range drawings {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, d.Count, Truncate(d.Description, 60))
	}
	return tw.Flush()
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
