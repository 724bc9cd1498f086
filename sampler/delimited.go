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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kbase/bdfs/manifest"
)

// the UTF-8 byte order mark, which may precede the header row
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// candidate delimiters for files whose extension doesn't imply one
var candidateDelimiters = []rune{',', '\t', '|', ';'}

// returns the field delimiter implied by a file extension, or 0 if the
// delimiter must be sniffed from the file's contents
func delimiterForExtension(ext string) rune {
	switch ext {
	case "csv":
		return ','
	case "tsv", "tab":
		return '\t'
	default:
		return 0
	}
}

// picks the candidate delimiter that occurs most often in the given line
func sniffDelimiter(line string) rune {
	best, bestCount := ',', 0
	for _, delim := range candidateDelimiters {
		if count := strings.Count(line, string(delim)); count > bestCount {
			best, bestCount = delim, count
		}
	}
	return best
}

// checks a header row for blank or repeated field names
func validateHeader(file string, header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			return &InvalidHeaderError{
				File:    file,
				Message: fmt.Sprintf("field %d has no name", i),
			}
		}
		if pos, exists := fields[h]; exists {
			return &InvalidHeaderError{
				File:    file,
				Message: fmt.Sprintf("'%s' appears at both %d and %d", h, pos, i),
			}
		}
		fields[h] = i
	}
	return nil
}

// reads the header row and up to sampleSize records from a delimited file,
// folding every column into the schema builder and returning the file's
// format
func sampleDelimited(file string, r io.Reader, ext string, sampleSize int,
	builder *schemaBuilder) (manifest.Format, error) {
	format := manifest.Format{
		Type:         manifest.FormatDelimited,
		Extension:    ext,
		Quote:        `"`,
		HasHeaderRow: true,
		Encoding:     "UTF-8",
	}

	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	delim := delimiterForExtension(ext)
	if delim == 0 {
		firstLine, err := br.Peek(br.Size())
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return format, err
		}
		line, _, _ := strings.Cut(string(firstLine), "\n")
		delim = sniffDelimiter(line)
	}
	format.Delimiter = string(delim)

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return format, &InvalidHeaderError{File: file, Message: "file is empty"}
		}
		return format, err
	}
	header = append([]string(nil), header...)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if err := validateHeader(file, header); err != nil {
		return format, err
	}
	columns := make([]*column, len(header))
	for i, name := range header {
		columns[i] = builder.column(name)
	}

	for n := 0; n < sampleSize; n++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return format, err
		}
		for i, value := range record {
			if i < len(columns) {
				columns[i].observe(value)
			}
		}
	}
	return format, nil
}
