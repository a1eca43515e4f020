package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// cardTableStyle is the rounded style with headers left as written, so card
// names and labels read the same in tables and in plain output.
func cardTableStyle() table.Style {
	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	return style
}

// renderTable draws rows under headers. Short rows are padded with blanks.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := newTableWriter("", aligns, len(headers))
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}
	return tw.Render()
}

// renderFacts draws label/value pairs under a title, values right-aligned.
// Used for the sync summary and the config reports.
func renderFacts(title string, facts [][2]string) string {
	tw := newTableWriter(title, []columnAlignment{alignLeft, alignRight}, 2)
	for _, f := range facts {
		tw.AppendRow(table.Row{f[0], f[1]})
	}
	return tw.Render()
}

func newTableWriter(title string, aligns []columnAlignment, columns int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(cardTableStyle())
	if title != "" {
		tw.SetTitle(title)
	}
	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func toRow(cells []string, columns int) table.Row {
	r := make(table.Row, columns)
	for i := range r {
		if i < len(cells) {
			r[i] = cells[i]
		} else {
			r[i] = ""
		}
	}
	return r
}
