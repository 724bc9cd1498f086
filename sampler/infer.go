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

package sampler

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kbase/bdfs/manifest"
)

// a Go time layout and the equivalent format string reported in manifests
type dateLayout struct {
	Layout, Format string
}

// recognized date/time layouts, most specific first
var dateLayouts = []dateLayout{
	{"2006-01-02T15:04:05Z07:00", "yyyy-MM-dd'T'HH:mm:ssXXX"},
	{"2006-01-02T15:04:05", "yyyy-MM-dd'T'HH:mm:ss"},
	{"2006-01-02 15:04:05", "yyyy-MM-dd HH:mm:ss"},
	{"2006-01-02", "yyyy-MM-dd"},
	{"2006/01/02", "yyyy/MM/dd"},
	{"01/02/2006 15:04:05", "MM/dd/yyyy HH:mm:ss"},
	{"01/02/2006", "MM/dd/yyyy"},
}

// well-known text geometry values, capturing the geometry keyword
var wktPattern = regexp.MustCompile(`(?i)^\s*(POINT|MULTIPOINT|LINESTRING|MULTILINESTRING|POLYGON|MULTIPOLYGON)\s*(Z|M|ZM)?\s*\(`)

// geometry types for WKT keywords
var wktGeometryTypes = map[string]string{
	"POINT":           "point",
	"MULTIPOINT":      "multipoint",
	"LINESTRING":      "polyline",
	"MULTILINESTRING": "polyline",
	"POLYGON":         "polygon",
	"MULTIPOLYGON":    "polygon",
}

// names of columns that may hold WKT geometry
var wktColumnNames = map[string]bool{
	"wkt":      true,
	"geometry": true,
	"geom":     true,
	"shape":    true,
	"the_geom": true,
}

// x/y column name pairs recognized as point coordinates, in order of preference
var coordinateColumnNames = [][2]string{
	{"x", "y"},
	{"longitude", "latitude"},
	{"lon", "lat"},
	{"long", "lat"},
	{"lng", "lat"},
}

// classifies a single non-empty value, returning its field type and, for
// dates, the format that matched
func classify(value string) (string, string) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "true") || strings.EqualFold(value, "false") {
		return manifest.FieldTypeBoolean, ""
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return manifest.FieldTypeInteger, ""
		}
		return manifest.FieldTypeBigInteger, ""
	}
	// ParseFloat also accepts "NaN", "Inf" and hex floats, which we treat as text
	if !strings.ContainsAny(value, "nNiIxX") {
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return manifest.FieldTypeDouble, ""
		}
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout.Layout, value); err == nil {
			return manifest.FieldTypeDate, layout.Format
		}
	}
	return manifest.FieldTypeString, ""
}

// ranks of numeric field types (wider types have higher ranks)
var numericRank = map[string]int{
	manifest.FieldTypeInteger:    1,
	manifest.FieldTypeBigInteger: 2,
	manifest.FieldTypeDouble:     3,
}

// returns the narrowest field type able to represent values of both given
// types ("" indicates that no values have been seen)
func widen(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "", a == b:
		return a
	}
	rankA, numericA := numericRank[a]
	rankB, numericB := numericRank[b]
	if numericA && numericB {
		if rankA > rankB {
			return a
		}
		return b
	}
	return manifest.FieldTypeString
}

// returns true if the given field type is numeric
func numeric(fieldType string) bool {
	_, found := numericRank[fieldType]
	return found
}

// accumulated observations for a single column
type column struct {
	Name string
	// inferred type ("" until a value is seen)
	Type string
	// date format shared by all date values
	DateFormat string
	// geometry keyword of the first WKT value in a geometry column
	WKT string
}

// folds a value into the column's inferred type
func (c *column) observe(value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if wktColumnNames[strings.ToLower(c.Name)] {
		if match := wktPattern.FindStringSubmatch(value); match != nil {
			if c.WKT == "" {
				c.WKT = strings.ToUpper(match[1])
			}
			c.Type = widen(c.Type, manifest.FieldTypeGeometry)
			return
		}
	}
	fieldType, format := classify(value)
	c.observeType(fieldType, format)
}

// folds a value of a known type into the column's inferred type
func (c *column) observeType(fieldType, format string) {
	if fieldType == manifest.FieldTypeDate && c.Type == manifest.FieldTypeDate &&
		format != c.DateFormat {
		// mixed date formats can't be interpreted consistently
		c.Type = manifest.FieldTypeString
		c.DateFormat = ""
		return
	}
	if c.Type == "" && fieldType == manifest.FieldTypeDate {
		c.DateFormat = format
	}
	c.Type = widen(c.Type, fieldType)
	if c.Type != manifest.FieldTypeDate {
		c.DateFormat = ""
	}
}

// returns the column's field type, defaulting to string for columns with no
// values
func (c *column) fieldType() string {
	if c.Type == "" {
		return manifest.FieldTypeString
	}
	return c.Type
}

// builds a schema from columns observed across the files of a dataset,
// preserving the order in which columns are first seen
type schemaBuilder struct {
	columns []*column
	index   map[string]*column
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{
		index: make(map[string]*column),
	}
}

// returns the column with the given name, adding it if it's new
func (b *schemaBuilder) column(name string) *column {
	if c, found := b.index[name]; found {
		return c
	}
	c := &column{Name: name}
	b.columns = append(b.columns, c)
	b.index[name] = c
	return c
}

// returns the schema for the observed columns
func (b *schemaBuilder) schema() manifest.Schema {
	fields := make([]manifest.Field, len(b.columns))
	for i, c := range b.columns {
		fields[i] = manifest.Field{
			Name: c.Name,
			Type: c.fieldType(),
		}
	}
	return manifest.Schema{Fields: fields}
}

// finds a column by name, ignoring case
func (b *schemaBuilder) find(name string) *column {
	for _, c := range b.columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// infers a point geometry from coordinate columns or any geometry from a WKT
// column, returning nil if neither is present
func (b *schemaBuilder) geometry() *manifest.Geometry {
	for _, pair := range coordinateColumnNames {
		x, y := b.find(pair[0]), b.find(pair[1])
		if x != nil && y != nil && numeric(x.Type) && numeric(y.Type) {
			return &manifest.Geometry{
				GeometryType:     "point",
				SpatialReference: manifest.SpatialReference{WKID: 4326},
				Fields: []manifest.FormattedField{
					{Name: x.Name, Formats: []string{"x"}},
					{Name: y.Name, Formats: []string{"y"}},
				},
			}
		}
	}
	for _, c := range b.columns {
		if c.Type == manifest.FieldTypeGeometry && c.WKT != "" {
			return &manifest.Geometry{
				GeometryType:     wktGeometryTypes[c.WKT],
				SpatialReference: manifest.SpatialReference{WKID: 4326},
				Fields: []manifest.FormattedField{
					{Name: c.Name, Formats: []string{"WKT"}},
				},
			}
		}
	}
	return nil
}

// infers time semantics from date columns: a start/end pair makes an
// interval, otherwise the first date column is an instant
func (b *schemaBuilder) time() *manifest.Time {
	var dates []*column
	for _, c := range b.columns {
		if c.Type == manifest.FieldTypeDate {
			dates = append(dates, c)
		}
	}
	if len(dates) == 0 {
		return nil
	}
	var start, end *column
	for _, c := range dates {
		name := strings.ToLower(c.Name)
		if start == nil && strings.HasPrefix(name, "start") {
			start = c
		} else if end == nil && strings.HasPrefix(name, "end") {
			end = c
		}
	}
	if start != nil && end != nil {
		return &manifest.Time{
			TimeType: manifest.TimeInterval,
			TimeZone: "UTC",
			Fields: []manifest.FormattedField{
				{Name: start.Name, Formats: []string{start.DateFormat}},
				{Name: end.Name, Formats: []string{end.DateFormat}},
			},
		}
	}
	return &manifest.Time{
		TimeType: manifest.TimeInstant,
		TimeZone: "UTC",
		Fields: []manifest.FormattedField{
			{Name: dates[0].Name, Formats: []string{dates[0].DateFormat}},
		},
	}
}
