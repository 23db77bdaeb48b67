// Package render writes tables as styled text, plain text, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"fundamentals/internal/table"
)

// Format is an output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the supported output formats
var Formats = []Format{FormatTable, FormatJSON, FormatYAML}

// tickerHeader is the heading of the identifier column in text output
const tickerHeader = "ticker"

// tabwriterPadding is the minimum padding between columns in plain output
const tabwriterPadding = 2

// groupingThreshold is the magnitude from which numbers get thousand separators
var groupingThreshold = decimal.NewFromInt(1000)

var printer = message.NewPrinter(language.English)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Options controls Write
type Options struct {
	Format Format
	// Limit caps the number of rows written; zero writes all rows
	Limit int
	// Styled draws text tables with borders and colors, for terminals
	Styled bool
}

// ParseFormat converts a flag value into a Format
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatTable, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Write renders t to w
func Write(w io.Writer, t *table.Table, opts Options) error {
	if t == nil {
		t = table.New()
	}
	t = head(t, opts.Limit)

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		if opts.Styled {
			return writeStyled(w, t)
		}
		return writePlain(w, t)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

func writeStyled(w io.Writer, t *table.Table) error {
	tbl := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(append([]string{tickerHeader}, t.Columns...)...).
		Rows(cells(t)...)

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func writePlain(w io.Writer, t *table.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)

	header := append([]string{strings.ToUpper(tickerHeader)}, upper(t.Columns)...)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, row := range cells(t) {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// cells returns the display rows of t with the ticker first
func cells(t *table.Table) [][]string {
	out := make([][]string, 0, t.Len())
	for _, r := range t.Rows {
		row := make([]string, 0, len(r.Values)+1)
		row = append(row, r.Ticker)
		for _, v := range r.Values {
			row = append(row, FormatNumber(v))
		}
		out = append(out, row)
	}
	return out
}

// FormatNumber adds thousand separators to plain decimal strings of magnitude
// 1000 or more. Anything else is returned unchanged.
func FormatNumber(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil || d.Abs().LessThan(groupingThreshold) {
		return s
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	grouped := printer.Sprintf("%d", d.Abs().IntPart())
	if _, frac, ok := strings.Cut(s, "."); ok {
		return sign + grouped + "." + frac
	}
	return sign + grouped
}

func head(t *table.Table, limit int) *table.Table {
	if limit <= 0 || t.Len() <= limit {
		return t
	}
	out := table.New(t.Columns...)
	out.Rows = t.Rows[:limit]
	return out
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}
