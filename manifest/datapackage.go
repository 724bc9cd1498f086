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

package manifest

import (
	"strings"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"
)

// Frictionless table schema types corresponding to our field types
// (https://specs.frictionlessdata.io/table-schema/#types-and-formats)
var frictionlessFieldTypes = map[string]string{
	FieldTypeString:     "string",
	FieldTypeInteger:    "integer",
	FieldTypeBigInteger: "integer",
	FieldTypeDouble:     "number",
	FieldTypeDate:       "datetime",
	FieldTypeBoolean:    "boolean",
	FieldTypeGeometry:   "any",
}

// media types for the dataset formats that have them
var mediaTypes = map[string]string{
	FormatDelimited: "text/csv",
	FormatGeoJSON:   "application/geo+json",
	FormatJSON:      "application/json",
}

// converts a string into a valid Frictionless name (lowercase alphanumerics
// and "-._/")
func frictionlessName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// returns a Frictionless data resource descriptor for the dataset
func (d Dataset) resourceDescriptor() map[string]any {
	fields := make([]any, len(d.Schema.Fields))
	for i, field := range d.Schema.Fields {
		fieldType, found := frictionlessFieldTypes[field.Type]
		if !found {
			fieldType = "any"
		}
		fields[i] = map[string]any{
			"name": field.Name,
			"type": fieldType,
		}
	}
	descriptor := map[string]any{
		"name":    frictionlessName(d.Name),
		"title":   d.Name,
		"path":    d.Name,
		"format":  d.Format.Extension,
		"profile": "tabular-data-resource",
		"schema": map[string]any{
			"fields": fields,
		},
	}
	if mediaType, found := mediaTypes[d.Format.Type]; found {
		descriptor["mediatype"] = mediaType
	}
	if d.Format.Encoding != "" {
		descriptor["encoding"] = d.Format.Encoding
	}
	if d.Format.Type == FormatDelimited {
		descriptor["dialect"] = map[string]any{
			"delimiter": d.Format.Delimiter,
			"quoteChar": d.Format.Quote,
			"header":    d.Format.HasHeaderRow,
		}
	}
	return descriptor
}

// converts a completed manifest into a Frictionless data package with the
// given name, with one tabular data resource per dataset
// (https://specs.frictionlessdata.io/data-package/)
func (m Manifest) DataPackage(name string) (*datapackage.Package, error) {
	if !m.Ready() || len(m.Datasets) == 0 {
		return nil, &EmptyManifestError{Status: m.Status}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	resources := make([]any, len(m.Datasets))
	for i, dataset := range m.Datasets {
		resources[i] = dataset.resourceDescriptor()
	}
	descriptor := map[string]any{
		"name":      frictionlessName(name),
		"title":     name,
		"resources": resources,
	}
	return datapackage.New(descriptor, ".", validator.InMemoryLoader())
}
