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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/jonas-p/go-shp"

	"github.com/kbase/bdfs/manifest"
)

// ESRI shapefile layout (https://www.esri.com/content/dam/esrisites/sitecore-archive/Files/Pdfs/library/whitepapers/pdfs/shapefile.pdf)
const (
	shpFileCode     = 9994
	shpHeaderLength = 100
)

// geometry types for shapefile shape types
var shapeGeometryTypes = map[shp.ShapeType]string{
	shp.POINT:       "point",
	shp.POINTZ:      "point",
	shp.POINTM:      "point",
	shp.POLYLINE:    "polyline",
	shp.POLYLINEZ:   "polyline",
	shp.POLYLINEM:   "polyline",
	shp.POLYGON:     "polygon",
	shp.POLYGONZ:    "polygon",
	shp.POLYGONM:    "polygon",
	shp.MULTIPOINT:  "multipoint",
	shp.MULTIPOINTZ: "multipoint",
	shp.MULTIPOINTM: "multipoint",
}

// reads the headers of a shapefile's main (.shp) file and its dBASE (.dbf)
// attribute table, folding the table's fields into the schema builder and
// returning the geometry type of the shapes. Both readers are closed.
func readShapefile(file string, shapes, table io.ReadCloser, builder *schemaBuilder) (string, error) {
	// the sequential reader doesn't expose the main header, so keep a copy
	var header bytes.Buffer
	shapesWithHeader := struct {
		io.Reader
		io.Closer
	}{io.TeeReader(shapes, &header), shapes}
	reader := shp.SequentialReaderFromExt(shapesWithHeader, table)
	defer reader.Close()
	if err := reader.Err(); err != nil {
		return "", &SampleError{File: file, Message: err.Error()}
	}

	h := header.Bytes()
	if len(h) < shpHeaderLength {
		return "", &SampleError{File: file, Message: "truncated header"}
	}
	if code := binary.BigEndian.Uint32(h[0:4]); code != shpFileCode {
		return "", &SampleError{File: file, Message: fmt.Sprintf("bad file code %d", code)}
	}
	shapeType := shp.ShapeType(binary.LittleEndian.Uint32(h[32:36]))
	geometryType, found := shapeGeometryTypes[shapeType]
	if !found {
		return "", &SampleError{File: file, Message: fmt.Sprintf("unsupported shape type %d", shapeType)}
	}

	for _, field := range reader.Fields() {
		name := strings.TrimRight(string(field.Name[:]), "\x00 ")
		c := builder.column(name)
		switch field.Fieldtype {
		case 'N':
			switch {
			case field.Precision > 0:
				c.observeType(manifest.FieldTypeDouble, "")
			case field.Size < 10:
				c.observeType(manifest.FieldTypeInteger, "")
			default:
				c.observeType(manifest.FieldTypeBigInteger, "")
			}
		case 'F', 'O':
			c.observeType(manifest.FieldTypeDouble, "")
		case 'I':
			c.observeType(manifest.FieldTypeInteger, "")
		case 'L':
			c.observeType(manifest.FieldTypeBoolean, "")
		case 'D':
			c.observeType(manifest.FieldTypeDate, "yyyyMMdd")
		default: // 'C', 'M', and anything exotic
			c.observeType(manifest.FieldTypeString, "")
		}
	}
	return geometryType, nil
}

// returns the well-known ID for the coordinate system described by a .prj
// file's WKT, or 0 if it isn't recognized
func wkidForPRJ(prj string) int {
	prj = strings.ToUpper(prj)
	switch {
	case strings.Contains(prj, "WEB_MERCATOR") || strings.Contains(prj, "PSEUDO-MERCATOR"):
		return 3857
	case strings.HasPrefix(strings.TrimSpace(prj), "PROJCS"):
		return 0
	case strings.Contains(prj, "WGS_1984") || strings.Contains(prj, "WGS 84") ||
		strings.Contains(prj, "WGS84"):
		return 4326
	case strings.Contains(prj, "NORTH_AMERICAN_1983") || strings.Contains(prj, "NAD83"):
		return 4269
	default:
		return 0
	}
}
