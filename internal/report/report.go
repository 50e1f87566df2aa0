// Package report renders fim results for the terminal and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/charmbracelet/lipgloss"
)

// Format selects how results are written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatToon Format = "toon"
)

// ParseFormat converts a --format value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatToon:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown format %q (valid: text, json, toon)", s)
}

// Renderer writes results to w in the chosen format.
type Renderer struct {
	w      io.Writer
	format Format
	color  bool

	title    lipgloss.Style
	added    lipgloss.Style
	modified lipgloss.Style
	deleted  lipgloss.Style
	warning  lipgloss.Style
	dir      lipgloss.Style
}

// New creates a Renderer. color enables ANSI styling of text output.
func New(w io.Writer, format Format, color bool) *Renderer {
	lr := lipgloss.NewRenderer(w)
	return &Renderer{
		w:        w,
		format:   format,
		color:    color,
		title:    lr.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		added:    lr.NewStyle().Foreground(lipgloss.Color("2")),
		modified: lr.NewStyle().Foreground(lipgloss.Color("3")),
		deleted:  lr.NewStyle().Foreground(lipgloss.Color("1")),
		warning:  lr.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		dir:      lr.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
	}
}

func (r *Renderer) paint(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

// encode writes doc as JSON or Toon. It reports false for text output,
// which each renderer handles itself.
func (r *Renderer) encode(doc any) (bool, error) {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return true, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return true, nil
	case FormatToon:
		output, err := gotoon.Encode(doc)
		if err != nil {
			return true, fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Fprintln(r.w, output)
		return true, nil
	}
	return false, nil
}

// HumanSize formats n bytes with a binary unit.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
