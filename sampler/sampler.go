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

// Package sampler generates dataset descriptions for big data file shares by
// sampling the files within each top-level folder of a share.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/kbase/bdfs/manifest"
)

// format type reported for folders containing no recognized files
const FormatUnknown = "unknown"

// options that govern sampling
type Options struct {
	// the number of records sampled from each file (default: 100)
	SampleSize int
	// the maximum number of files sampled per dataset (default: 1)
	MaxFiles int
}

func (o Options) withDefaults() Options {
	if o.SampleSize <= 0 {
		o.SampleSize = 100
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = 1
	}
	return o
}

// format types for recognized file extensions
var formatsForExtensions = map[string]string{
	"csv":     manifest.FormatDelimited,
	"tsv":     manifest.FormatDelimited,
	"tab":     manifest.FormatDelimited,
	"txt":     manifest.FormatDelimited,
	"shp":     manifest.FormatShapefile,
	"geojson": manifest.FormatGeoJSON,
	"json":    manifest.FormatJSON,
	"orc":     manifest.FormatORC,
	"parquet": manifest.FormatParquet,
}

// returns the lowercased extension of a file name without its leading dot
func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// Sample describes every dataset (immediate child folder) within the given
// share, returning the datasets sorted by name. Any folder that can't be
// sampled causes Sample to fail.
func Sample(ctx context.Context, share Share, opts Options) ([]manifest.Dataset, error) {
	opts = opts.withDefaults()
	if err := share.Stat(ctx); err != nil {
		return nil, err
	}
	entries, err := share.ReadDir(ctx, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir && !ignored(entry.Name) {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)

	datasets := make([]manifest.Dataset, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dataset, err := SampleDataset(ctx, share, name, opts)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)
	}
	return datasets, nil
}

// SampleDataset describes the dataset stored in the given top-level folder of
// a share.
func SampleDataset(ctx context.Context, share Share, name string, opts Options) (manifest.Dataset, error) {
	opts = opts.withDefaults()
	files, err := collectFiles(ctx, share, name)
	if err != nil {
		return manifest.Dataset{}, err
	}

	// the first recognized file determines the dataset's format
	formatType := ""
	for _, file := range files {
		if ft, found := formatsForExtensions[extension(file)]; found {
			formatType = ft
			break
		}
	}

	dataset := manifest.Dataset{Name: name}
	switch formatType {
	case "":
		dataset.Format = manifest.Format{Type: FormatUnknown}
		dataset.Schema = manifest.Schema{Fields: []manifest.Field{}}
	case manifest.FormatORC, manifest.FormatParquet:
		// columnar formats are reported without sampling their contents
		for _, file := range files {
			if formatsForExtensions[extension(file)] == formatType {
				dataset.Format = manifest.Format{Type: formatType, Extension: extension(file)}
				break
			}
		}
		dataset.Schema = manifest.Schema{Fields: []manifest.Field{}}
	case manifest.FormatShapefile:
		err = sampleShapefiles(ctx, share, &dataset, files, opts)
	default:
		err = sampleRecords(ctx, share, &dataset, formatType, files, opts)
	}
	if err != nil {
		var sampleErr *SampleError
		if errors.As(err, &sampleErr) {
			sampleErr.Dataset = name
			return dataset, sampleErr
		}
		return dataset, err
	}
	slog.Debug(fmt.Sprintf("Sampled dataset '%s' (%s, %d fields)", name,
		dataset.Format.Type, len(dataset.Schema.Fields)))
	return dataset, nil
}

// returns the share-relative paths of all non-ignored files beneath the
// given folder, in lexical order
func collectFiles(ctx context.Context, share Share, dir string) ([]string, error) {
	entries, err := share.ReadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	var files []string
	for _, entry := range entries {
		if ignored(entry.Name) {
			continue
		}
		p := join(dir, entry.Name)
		if entry.IsDir {
			subfiles, err := collectFiles(ctx, share, p)
			if err != nil {
				return nil, err
			}
			files = append(files, subfiles...)
		} else {
			files = append(files, p)
		}
	}
	return files, nil
}

// samples up to MaxFiles delimited or JSON files of the given format type
func sampleRecords(ctx context.Context, share Share, dataset *manifest.Dataset,
	formatType string, files []string, opts Options) error {
	builder := newSchemaBuilder()
	geometryType := ""
	sampled := 0
	for _, file := range files {
		if sampled == opts.MaxFiles {
			break
		}
		ext := extension(file)
		if formatsForExtensions[ext] != formatType {
			continue
		}
		r, err := share.Open(ctx, file)
		if err != nil {
			return err
		}
		var format manifest.Format
		var gt string
		switch formatType {
		case manifest.FormatDelimited:
			format, err = sampleDelimited(file, r, ext, opts.SampleSize, builder)
		default:
			format, gt, err = sampleJSON(file, r, ext, opts.SampleSize, builder)
		}
		r.Close()
		if err != nil {
			var headerErr *InvalidHeaderError
			var sampleErr *SampleError
			if !errors.As(err, &headerErr) && !errors.As(err, &sampleErr) {
				err = &SampleError{File: file, Message: err.Error()}
			}
			return err
		}
		if sampled == 0 {
			dataset.Format = format
		}
		if geometryType == "" {
			geometryType = gt
		}
		sampled++
	}

	dataset.Schema = builder.schema()
	if geometryType != "" {
		// GeoJSON geometry lives outside the properties
		dataset.Format.Type = manifest.FormatGeoJSON
		dataset.Geometry = &manifest.Geometry{
			GeometryType:     geometryType,
			SpatialReference: manifest.SpatialReference{WKID: 4326},
		}
	} else {
		dataset.Geometry = builder.geometry()
	}
	dataset.Time = builder.time()
	return nil
}

// samples a shapefile dataset: geometry from the first .shp header, fields
// from its .dbf sidecar, and spatial reference from any .prj sidecar
func sampleShapefiles(ctx context.Context, share Share, dataset *manifest.Dataset,
	files []string, opts Options) error {
	var shp string
	for _, file := range files {
		if extension(file) == "shp" {
			shp = file
			break
		}
	}
	dataset.Format = manifest.Format{
		Type:      manifest.FormatShapefile,
		Extension: "shp",
	}

	dbf := sidecar(files, shp, "dbf")
	if dbf == "" {
		return &SampleError{File: shp, Message: "no .dbf attribute table"}
	}
	shapes, err := share.Open(ctx, shp)
	if err != nil {
		return err
	}
	table, err := share.Open(ctx, dbf)
	if err != nil {
		shapes.Close()
		return err
	}
	builder := newSchemaBuilder()
	geometryType, err := readShapefile(shp, shapes, table, builder)
	if err != nil {
		return err
	}

	wkid := 4326
	if prj := sidecar(files, shp, "prj"); prj != "" {
		r, err := share.Open(ctx, prj)
		if err != nil {
			return err
		}
		text, err := io.ReadAll(io.LimitReader(r, 64*1024))
		r.Close()
		if err != nil {
			return err
		}
		wkid = wkidForPRJ(string(text))
	}

	dataset.Schema = builder.schema()
	dataset.Geometry = &manifest.Geometry{
		GeometryType:     geometryType,
		SpatialReference: manifest.SpatialReference{WKID: wkid},
	}
	dataset.Time = builder.time()
	return nil
}

// finds the sidecar file with the given extension for a .shp file, ignoring
// case, returning "" if none exists
func sidecar(files []string, shp, ext string) string {
	base := strings.TrimSuffix(shp, path.Ext(shp))
	for _, file := range files {
		if strings.EqualFold(file, base+"."+ext) {
			return file
		}
	}
	return ""
}
