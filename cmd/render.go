// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kbase/bdfs/datastores"
	"github.com/kbase/bdfs/manifest"
)

var (
	primaryColor = lipgloss.Color("#7571f9")
	mutedColor   = lipgloss.Color("#6c757d")
	readyColor   = lipgloss.Color("#2ecc71")
	warningColor = lipgloss.Color("#ff9f43")
	dangerColor  = lipgloss.Color("#ff6b6b")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
)

// creates a table with the given column headers in the house style
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(primaryColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// renders a manifest status in a color that reflects it
func renderStatus(status manifest.Status) string {
	style := lipgloss.NewStyle()
	switch status {
	case manifest.StatusReady:
		style = style.Foreground(readyColor)
	case manifest.StatusProcessing:
		style = style.Foreground(warningColor)
	case manifest.StatusFailed:
		style = style.Foreground(dangerColor)
	}
	return style.Render(string(status))
}

// renders a table of datastores
func renderDatastores(list []*datastores.Datastore) string {
	if len(list) == 0 {
		return mutedStyle.Render("No big data file shares are registered.")
	}
	t := newTable("NAME", "TITLE", "TYPE", "PATH", "STATUS", "REGISTERED")
	for _, ds := range list {
		t.Row(ds.Name, ds.Title, string(ds.Type), ds.Path, renderStatus(ds.Status),
			ds.Created.Local().Format("2006-01-02 15:04"))
	}
	return t.Render()
}

// renders the details of a single datastore
func renderDatastore(ds *datastores.Datastore) string {
	t := newTable("PROPERTY", "VALUE").
		Row("id", ds.Id.String()).
		Row("name", ds.Name).
		Row("title", ds.Title).
		Row("type", string(ds.Type)).
		Row("path", ds.Path).
		Row("registered", ds.Created.Local().Format("2006-01-02 15:04:05")).
		Row("status", renderStatus(ds.Status))
	return titleStyle.Render(ds.Title) + "\n" + t.Render()
}

// summarizes a dataset's geometry for display
func geometrySummary(g *manifest.Geometry) string {
	if g == nil {
		return "-"
	}
	var names []string
	for _, f := range g.Fields {
		names = append(names, f.Name)
	}
	summary := fmt.Sprintf("%s (%d)", g.GeometryType, g.SpatialReference.WKID)
	if len(names) > 0 {
		summary += " " + strings.Join(names, ",")
	}
	return summary
}

// summarizes a dataset's time semantics for display
func timeSummary(t *manifest.Time) string {
	if t == nil {
		return "-"
	}
	var names []string
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return fmt.Sprintf("%s %s", t.TimeType, strings.Join(names, ","))
}

// renders a table of datasets
func renderDatasets(datasets []manifest.Dataset) string {
	if len(datasets) == 0 {
		return mutedStyle.Render("No datasets are available (the manifest may not be ready).")
	}
	t := newTable("DATASET", "FORMAT", "FIELDS", "GEOMETRY", "TIME")
	for _, d := range datasets {
		format := d.Format.Type
		if d.Format.Extension != "" {
			format += " (." + d.Format.Extension + ")"
		}
		t.Row(d.Name, format, fmt.Sprintf("%d", len(d.Schema.Fields)),
			geometrySummary(d.Geometry), timeSummary(d.Time))
	}
	return t.Render()
}
