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

// This package contains testing utilities for big data file share clients
// and services.
package bdfstest

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
)

// Enables DEBUG log messages for the structured log (slog).
func EnableDebugLogging() {
	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelDebug)
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
}

// Populates a folder with the given files, keyed by slash-separated paths
// relative to the folder, creating any intermediate folders.
func WriteShare(root string, files map[string][]byte) error {
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, content, 0644); err != nil {
			return err
		}
	}
	return nil
}

// A test share holding three datasets (earthquakes, hurricanes, and
// observations), plus hidden content that must be skipped when sampling.
func NaturalHazardsShare() map[string][]byte {
	return map[string][]byte{
		"earthquakes/2023.csv": []byte(`event_id,longitude,latitude,magnitude,date
3000000001,-122.41,37.77,4.2,2023-01-04
3000000002,-118.24,34.05,3.1,2023-02-11
`),
		"earthquakes/_SUCCESS":  {},
		"hurricanes/tracks.shp": ShapefileHeader(3),
		"hurricanes/tracks.dbf": DBFHeader([]DBFField{
			{Name: "NAME", Type: 'C', Length: 32},
			{Name: "WIND", Type: 'N', Length: 4},
		}),
		"observations/readings.tsv": []byte("station\tstart_time\tend_time\ttemp\n" +
			"KSEA\t2023-06-01T00:00:00\t2023-06-01T01:00:00\t18.5\n"),
		".staging/ignored.csv": []byte("a,b\n1,2\n"),
	}
}

// Returns a 100-byte ESRI shapefile header with the given shape type and no
// records.
func ShapefileHeader(shapeType int32) []byte {
	header := make([]byte, 100)
	binary.BigEndian.PutUint32(header[0:4], 9994)
	binary.BigEndian.PutUint32(header[24:28], 50) // length in 16-bit words
	binary.LittleEndian.PutUint32(header[28:32], 1000)
	binary.LittleEndian.PutUint32(header[32:36], uint32(shapeType))
	return header
}

// describes a field in a dBASE attribute table
type DBFField struct {
	Name             string
	Type             byte
	Length, Decimals byte
}

// Returns a dBASE (.dbf) header describing the given fields, with no records.
func DBFHeader(fields []DBFField) []byte {
	var buf bytes.Buffer
	header := make([]byte, 32)
	header[0] = 0x03
	headerLength := 32 + 32*len(fields) + 1
	binary.LittleEndian.PutUint16(header[8:10], uint16(headerLength))
	recordLength := 1
	for _, f := range fields {
		recordLength += int(f.Length)
	}
	binary.LittleEndian.PutUint16(header[10:12], uint16(recordLength))
	buf.Write(header)
	for _, f := range fields {
		descriptor := make([]byte, 32)
		copy(descriptor[0:11], f.Name)
		descriptor[11] = f.Type
		descriptor[16] = f.Length
		descriptor[17] = f.Decimals
		buf.Write(descriptor)
	}
	buf.WriteByte(0x0D)
	return buf.Bytes()
}
