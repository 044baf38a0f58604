// Package diff compares a plot file already on disk with the one an export
// would write: a line-based unified diff plus a summary by Plot-ID.
package diff

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/hupe1980/fieldexport/internal/fieldexplorer"
)

// Result holds the result of a unified diff computation.
type Result struct {
	Unified        string
	HasDifferences bool
	Hunks          []string
	OldLabel       string
	NewLabel       string
}

// Options configures diff computation.
type Options struct {
	OldLabel string
	NewLabel string
	Context  int
}

// DefaultOptions returns sensible default diff options.
func DefaultOptions() Options {
	return Options{
		OldLabel: "existing",
		NewLabel: "proposed",
		Context:  3,
	}
}

// Compute computes a unified diff between two plot files. Line endings are
// normalised first so that CRLF and LF files with the same rows are equal.
func Compute(oldDoc, newDoc string, opts Options) (*Result, error) {
	diff := difflib.UnifiedDiff{
		A:        splitLines(normalize(oldDoc)),
		B:        splitLines(normalize(newDoc)),
		FromFile: opts.OldLabel,
		ToFile:   opts.NewLabel,
		Context:  opts.Context,
	}

	unified, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	hasDiff := unified != ""

	var hunks []string
	if hasDiff {
		hunks = extractHunks(unified)
	}

	return &Result{
		Unified:        unified,
		HasDifferences: hasDiff,
		Hunks:          hunks,
		OldLabel:       opts.OldLabel,
		NewLabel:       opts.NewLabel,
	}, nil
}

// extractHunks splits unified diff output into individual hunks.
func extractHunks(unified string) []string {
	var hunks []string

	var current strings.Builder

	for _, line := range strings.Split(unified, "\n") {
		if strings.HasPrefix(line, "@@") {
			if current.Len() > 0 {
				hunks = append(hunks, current.String())
				current.Reset()
			}
		}

		if current.Len() == 0 && !strings.HasPrefix(line, "@@") {
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")
	}

	if current.Len() > 0 {
		hunks = append(hunks, current.String())
	}

	return hunks
}

// Write writes a formatted diff to w, colored unless noColor is set.
func Write(w io.Writer, result *Result, noColor bool) {
	if !result.HasDifferences {
		_, _ = fmt.Fprintln(w, "No differences found.")
		return
	}

	var (
		header = color.New(color.Bold)
		hunk   = color.New(color.FgCyan)
		del    = color.New(color.FgRed)
		add    = color.New(color.FgGreen)
	)

	for _, c := range []*color.Color{header, hunk, del, add} {
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}

	for _, line := range strings.Split(strings.TrimSuffix(result.Unified, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			_, _ = header.Fprintln(w, line)
		case strings.HasPrefix(line, "@@"):
			_, _ = hunk.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			_, _ = del.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			_, _ = add.Fprintln(w, line)
		default:
			_, _ = fmt.Fprintln(w, line)
		}
	}
}

// Summary lists the Plot-IDs that differ between two plot files.
type Summary struct {
	Added   []string `json:"added"   yaml:"added"`
	Removed []string `json:"removed" yaml:"removed"`
	Changed []string `json:"changed" yaml:"changed"`
}

// Empty reports whether both files hold the same plots.
func (s Summary) Empty() bool {
	return len(s.Added) == 0 && len(s.Removed) == 0 && len(s.Changed) == 0
}

// String renders the summary as "2 added, 1 removed, 0 changed".
func (s Summary) String() string {
	return fmt.Sprintf("%d added, %d removed, %d changed", len(s.Added), len(s.Removed), len(s.Changed))
}

// Summarize compares plot records by Plot-ID. A plot is changed when its
// corners or comments differ; CRLF and LF line breaks in comments are equal. Results are sorted by Plot-ID.
func Summarize(oldRecs, newRecs []fieldexplorer.PlotRecord) Summary {
	oldByID := index(oldRecs)
	newByID := index(newRecs)

	var s Summary

	for id, n := range newByID {
		o, ok := oldByID[id]

		switch {
		case !ok:
			s.Added = append(s.Added, id)
		case !o.Equal(n):
			s.Changed = append(s.Changed, id)
		}
	}

	for id := range oldByID {
		if _, ok := newByID[id]; !ok {
			s.Removed = append(s.Removed, id)
		}
	}

	slices.Sort(s.Added)
	slices.Sort(s.Removed)
	slices.Sort(s.Changed)

	return s
}

// index maps Plot-IDs to records; for repeated IDs the last record wins.
func index(recs []fieldexplorer.PlotRecord) map[string]fieldexplorer.PlotRecord {
	m := make(map[string]fieldexplorer.PlotRecord, len(recs))
	for _, r := range recs {
		m[r.PlotID] = r
	}

	return m
}

func normalize(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// splitLines splits a string into lines for diff processing.
// Each element includes a trailing newline for difflib compatibility.
func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}

	return strings.SplitAfter(s, "\n")
}
