package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"gapfill/internal/coverage"
	"gapfill/internal/store"
	"gapfill/internal/subsystem"
	"gapfill/internal/suggest"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d6dae0"))
)

// suggestionJSON is the machine-readable suggest output.
type suggestionJSON struct {
	RunID         string   `json:"run_id"`
	ReferenceFile string   `json:"reference_file"`
	Subsystems    []string `json:"subsystems"`
	MissingRoles  []string `json:"missing_roles"`
	Reactions     []string `json:"reactions"`
}

func writeResult(ctx context.Context, w io.Writer, ref reference, res *suggest.Result, format string) error {
	switch format {
	case "json":
		out := suggestionJSON{
			RunID:         res.RunID,
			ReferenceFile: res.ReferenceFile,
			Subsystems:    nonNil(res.Subsystems),
			MissingRoles:  nonNil(res.MissingRoles.Elements()),
			Reactions:     nonNil(res.Reactions.Elements()),
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "markdown":
		return renderMarkdown(w, suggestionMarkdown(res))
	case "text", "":
		for _, id := range res.Reactions.Elements() {
			r, err := ref.Reaction(ctx, id)
			switch {
			case errors.Is(err, store.ErrReactionNotFound):
				fmt.Fprintln(w, id)
			case err != nil:
				return err
			default:
				fmt.Fprintln(w, r.String())
			}
		}
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d reactions from %d subsystems (%d missing roles)",
			res.Reactions.Len(), len(res.Subsystems), res.MissingRoles.Len())))
		return nil
	}
	return fmt.Errorf("unknown output format %q (valid: text, json, markdown)", format)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func suggestionMarkdown(res *suggest.Result) string {
	var sb strings.Builder
	sb.WriteString("# Suggested reactions\n\n")
	fmt.Fprintf(&sb, "Run `%s` against `%s`.\n\n", res.RunID, res.ReferenceFile)
	sb.WriteString(coverageMarkdown(res.Coverage, res.Subsystems))
	sb.WriteString("\n## Reactions\n\n")
	if res.Reactions.Len() == 0 {
		sb.WriteString("_none_\n")
	}
	for _, id := range res.Reactions.Elements() {
		fmt.Fprintf(&sb, "- %s\n", id)
	}
	return sb.String()
}

// coverageMarkdown renders the selected (or, when selected is nil, every
// touched) subsystem as a markdown table.
func coverageMarkdown(rep *coverage.Report, selected []string) string {
	keep := make(map[string]bool, len(selected))
	for _, s := range selected {
		keep[s] = true
	}
	var sb strings.Builder
	sb.WriteString("| Subsystem | Present | Total | Coverage |\n|---|---:|---:|---:|\n")
	for _, e := range rep.Entries() {
		if selected != nil && !keep[e.Subsystem] {
			continue
		}
		fmt.Fprintf(&sb, "| %s | %d | %d | %.2f |\n", e.Subsystem, e.Present, e.Total, e.Fraction)
	}
	return sb.String()
}

func renderMarkdown(w io.Writer, md string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// coverageTable renders report rows at or above threshold.
func coverageTable(rep *coverage.Report, idx *subsystem.Index, threshold float64) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("Subsystem", "Class", "Present", "Total", "Coverage", "Reactions").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, e := range rep.Entries() {
		if e.Fraction < threshold {
			continue
		}
		class := ""
		if c, ok := idx.Classification(e.Subsystem); ok {
			class = c.Primary
			if c.Secondary != "" {
				class += " / " + c.Secondary
			}
		}
		t.Row(e.Subsystem, class,
			fmt.Sprint(e.Present), fmt.Sprint(e.Total),
			fmt.Sprintf("%.2f", e.Fraction), fmt.Sprint(e.Reactions))
	}
	return t.String()
}
