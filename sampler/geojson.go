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
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kbase/bdfs/manifest"
)

// geometry types for GeoJSON geometry types (RFC 7946)
var geoJSONGeometryTypes = map[string]string{
	"Point":           "point",
	"MultiPoint":      "multipoint",
	"LineString":      "polyline",
	"MultiLineString": "polyline",
	"Polygon":         "polygon",
	"MultiPolygon":    "polygon",
}

// a GeoJSON feature, with properties left raw so their order survives
type feature struct {
	Geometry *struct {
		Type string `json:"type"`
	} `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// folds the members of a JSON object into the schema builder in the order
// in which they appear
func observeObject(raw json.RawMessage, builder *schemaBuilder) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return fmt.Errorf("expected a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		c := builder.column(name)
		switch v := value.(type) {
		case nil:
			// no information
		case bool:
			c.observeType(manifest.FieldTypeBoolean, "")
		case json.Number:
			c.observe(v.String())
		case string:
			c.observe(v)
		default: // nested objects and arrays
			c.observeType(manifest.FieldTypeString, "")
		}
	}
	return nil
}

// samples up to sampleSize features from a GeoJSON FeatureCollection,
// returning the geometry type of the first feature that has one
func sampleFeatureCollection(file string, dec *json.Decoder, sampleSize int,
	builder *schemaBuilder) (string, error) {
	var geometryType string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if tok != "features" {
			var skipped json.RawMessage
			if err := dec.Decode(&skipped); err != nil {
				return "", err
			}
			continue
		}
		if tok, err := dec.Token(); err != nil || tok != json.Delim('[') {
			return "", &SampleError{File: file, Message: "'features' is not an array"}
		}
		for n := 0; n < sampleSize && dec.More(); n++ {
			var f feature
			if err := dec.Decode(&f); err != nil {
				return "", err
			}
			if geometryType == "" && f.Geometry != nil {
				geometryType = geoJSONGeometryTypes[f.Geometry.Type]
			}
			if err := observeObject(f.Properties, builder); err != nil {
				return "", &SampleError{File: file, Message: err.Error()}
			}
		}
		break // we've seen enough
	}
	return geometryType, nil
}

// samples a JSON file, which is either a GeoJSON FeatureCollection or a
// sequence of newline-delimited JSON records, returning its format and (for
// GeoJSON) the geometry type of its features
func sampleJSON(file string, r io.Reader, ext string, sampleSize int,
	builder *schemaBuilder) (manifest.Format, string, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(br.Size())
	trimmed := bytes.TrimLeft(peek, " \t\r\n")

	// a FeatureCollection is a single object with a "features" member
	if bytes.HasPrefix(trimmed, []byte("{")) && bytes.Contains(peek, []byte(`"FeatureCollection"`)) {
		dec := json.NewDecoder(br)
		dec.UseNumber()
		if _, err := dec.Token(); err != nil {
			return manifest.Format{}, "", err
		}
		geometryType, err := sampleFeatureCollection(file, dec, sampleSize, builder)
		return manifest.Format{
			Type:      manifest.FormatGeoJSON,
			Extension: ext,
			Encoding:  "UTF-8",
		}, geometryType, err
	}

	format := manifest.Format{
		Type:      manifest.FormatJSON,
		Extension: ext,
		Encoding:  "UTF-8",
	}
	dec := json.NewDecoder(br)
	for n := 0; n < sampleSize; n++ {
		var record json.RawMessage
		err := dec.Decode(&record)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return format, "", &SampleError{File: file, Message: err.Error()}
		}
		if err := observeObject(record, builder); err != nil {
			return format, "", &SampleError{File: file, Message: err.Error()}
		}
	}
	return format, "", nil
}
