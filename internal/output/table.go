package output

import (
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/Jurkyy/project-pilot/internal/workspace"
)

// Table provides table rendering utilities
type Table struct {
	table  *tablewriter.Table
	header []string
	rows   [][]string
}

// NewTable creates a new table writing to w
func NewTable(w io.Writer, headers []string) *Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)

	return &Table{table: table, header: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// Render outputs the table
func (t *Table) Render() {
	t.table.Header(t.header)
	t.table.Bulk(t.rows)
	t.table.Render()
}

// PrintReport prints one row per file of a materialization report, written
// files first, then skipped ones with their reason. generated marks files
// that were added by container detection.
func (p *Printer) PrintReport(report workspace.Report, generated []string) {
	if p.quiet {
		return
	}
	gen := make(map[string]bool, len(generated))
	for _, g := range generated {
		gen[g] = true
	}

	t := NewTable(p.out, []string{"Status", "Path", "Note"})
	for _, path := range report.Written {
		note := ""
		if gen[path] {
			note = "generated"
		}
		t.AddRow(p.badge("written"), path, note)
	}
	for _, s := range report.Skipped {
		t.AddRow(p.badge("skipped"), s.Path, s.Reason)
	}
	t.Render()
}

func (p *Printer) badge(status string) string {
	if !p.useColors {
		return "[" + status + "]"
	}
	switch status {
	case "written":
		return color.GreenString("●") + " " + status
	default:
		return color.RedString("●") + " " + status
	}
}
