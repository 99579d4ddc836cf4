package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/cn3rd/bcsync/internal/pipeline"
)

func renderTable(headers []string, rows [][]string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderSummary(s *pipeline.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d release(s): %d downloaded, %d skipped, %d failed\n",
		s.Total, s.Succeeded, s.Skipped, s.Failed)

	failures := s.Failures()
	if len(failures) > 0 {
		rows := make([][]string, 0, len(failures))
		for _, r := range failures {
			reason := r.Reason
			if reason == "" && r.Err != nil {
				reason = r.Err.Error()
			}
			rows = append(rows, []string{r.ItemID, r.Artist, r.Title, reason})
		}
		b.WriteString(renderTable([]string{"ID", "Artist", "Title", "Error"}, rows))
		b.WriteString("\n")
	}

	return b.String()
}
