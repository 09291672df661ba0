package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	table "github.com/charmbracelet/bubbles/table"

	"cdbmap/internal/geom"
)

const maxColW = 24

// refreshAttrs rebuilds the table columns/rows from the loaded shapes
func (m *Model) refreshAttrs() {
	cols, rows := buildAttributes(m.snap.Shapes)
	if len(cols) == 0 || len(rows) == 0 {
		m.showAttrs = false
		m.status = "no attributes for current map"
		return
	}
	tcols := make([]table.Column, 0, len(cols)+1)
	tcols = append(tcols, table.Column{Title: "#", Width: 4})
	for _, c := range cols {
		tcols = append(tcols, table.Column{Title: c, Width: min(len(c)+2, maxColW)})
	}
	trows := make([]table.Row, 0, len(rows))
	for i, r := range rows {
		row := make([]string, 0, len(r)+1)
		row = append(row, strconv.Itoa(i+1))
		row = append(row, r...)
		trows = append(trows, table.Row(row))
	}
	// Avoid transient mismatch: clear rows, set columns, then set rows
	m.tbl.SetRows(nil)
	m.tbl.SetColumns(tcols)
	m.tbl.SetRows(trows)
}

// buildAttributes unions the property keys of every shape. Every row has
// one cell per column.
func buildAttributes(shapes []geom.Shape) ([]string, [][]string) {
	seen := map[string]bool{}
	var cols []string
	for _, sh := range shapes {
		for k := range sh.Properties {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	rows := make([][]string, 0, len(shapes))
	for _, sh := range shapes {
		vals := make([]string, len(cols))
		for i, k := range cols {
			if v, ok := sh.Properties[k]; ok {
				vals[i] = formatValue(v)
			}
		}
		rows = append(rows, vals)
	}
	return cols, rows
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		bs, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(bs)
	}
}

func sortedKeys(props map[string]any) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
