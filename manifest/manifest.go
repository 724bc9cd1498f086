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

// Package manifest describes the datasets found within a big data file share:
// their formats, schemas, geometry and time semantics.
package manifest

import (
	"strings"
)

// the status of a manifest as reported by the server that generates it
type Status string

const (
	StatusProcessing Status = "processing" // sampling is still in progress
	StatusReady      Status = "ready"      // sampling has completed
	StatusFailed     Status = "failed"     // sampling could not be completed
)

// field types assigned to dataset columns
const (
	FieldTypeString     = "string"
	FieldTypeInteger    = "integer"
	FieldTypeBigInteger = "bigInteger"
	FieldTypeDouble     = "double"
	FieldTypeDate       = "date"
	FieldTypeBoolean    = "boolean"
	FieldTypeGeometry   = "geometry"
)

// dataset format types
const (
	FormatDelimited = "delimited"
	FormatShapefile = "shapefile"
	FormatGeoJSON   = "geojson"
	FormatJSON      = "json"
	FormatORC       = "orc"
	FormatParquet   = "parquet"
)

// time types
const (
	TimeInstant  = "instant"
	TimeInterval = "interval"
)

// the server-generated description of all datasets within a datastore
type Manifest struct {
	// indicates whether the manifest is complete
	Status Status `json:"status"`
	// an explanatory message (set when sampling failed)
	Message string `json:"message,omitempty"`
	// descriptions of the datasets, one per top-level folder (never nil)
	Datasets []Dataset `json:"datasets"`
}

// returns a manifest in the "not yet ready" state
func Processing() Manifest {
	return Manifest{
		Status:   StatusProcessing,
		Datasets: []Dataset{},
	}
}

// returns true if the manifest has been completely generated
func (m Manifest) Ready() bool {
	return m.Status == StatusReady
}

// returns the dataset with the given name, or false if none exists
func (m Manifest) Dataset(name string) (Dataset, bool) {
	for _, dataset := range m.Datasets {
		if dataset.Name == name {
			return dataset, true
		}
	}
	return Dataset{}, false
}

// returns the names of the datasets in the manifest, in order
func (m Manifest) DatasetNames() []string {
	names := make([]string, len(m.Datasets))
	for i, dataset := range m.Datasets {
		names[i] = dataset.Name
	}
	return names
}

// a description of one schema-described unit of data (a folder of similarly
// structured files) within a datastore
type Dataset struct {
	// the name of the dataset (the name of its folder)
	Name string `json:"name"`
	// the format of the dataset's files
	Format Format `json:"format"`
	// the dataset's fields
	Schema Schema `json:"schema"`
	// the dataset's geometry, if it has any
	Geometry *Geometry `json:"geometry,omitempty"`
	// the dataset's time semantics, if it has any
	Time *Time `json:"time,omitempty"`
}

// describes the format of the files in a dataset
type Format struct {
	// the format type ("delimited", "shapefile", "geojson", "orc", ...)
	Type string `json:"type"`
	// the file extension shared by the dataset's files
	Extension string `json:"extension"`
	// the field delimiter (delimited files only)
	Delimiter string `json:"fieldDelimiter,omitempty"`
	// the quote character (delimited files only)
	Quote string `json:"quoteChar,omitempty"`
	// true if the first row of each file names its fields (delimited files only)
	HasHeaderRow bool `json:"hasHeaderRow,omitempty"`
	// the character encoding of the dataset's files (default: UTF-8)
	Encoding string `json:"encoding,omitempty"`
}

// an ordered list of fields
type Schema struct {
	Fields []Field `json:"fields"`
}

// returns the names of the fields in the schema, in order
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, field := range s.Fields {
		names[i] = field.Name
	}
	return names
}

// returns the field with the given name (case-insensitive), or false if none
// exists
func (s Schema) Field(name string) (Field, bool) {
	for _, field := range s.Fields {
		if strings.EqualFold(field.Name, name) {
			return field, true
		}
	}
	return Field{}, false
}

// a single named, typed field
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// describes how a dataset's geometry is represented
type Geometry struct {
	// the geometry type ("point", "polyline", "polygon", "multipoint")
	GeometryType string `json:"geometryType"`
	// the spatial reference of the coordinates
	SpatialReference SpatialReference `json:"spatialReference"`
	// the fields from which geometry is constructed and their formats
	// (e.g. x/y columns or a single WKT column)
	Fields []FormattedField `json:"fields,omitempty"`
}

// identifies a coordinate system by its well-known ID
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// describes how a dataset's time values are represented
type Time struct {
	// "instant" or "interval"
	TimeType string `json:"timeType"`
	// the time zone in which time values are expressed
	TimeZone string `json:"timeZone"`
	// the fields holding time values and their formats (one for instants,
	// start and end for intervals)
	Fields []FormattedField `json:"fields"`
}

// a field along with the formats used to interpret it
type FormattedField struct {
	Name    string   `json:"name"`
	Formats []string `json:"formats"`
}
