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

// Package sampler inspects the folders of a big data file share and infers a
// manifest.Dataset for each of them.
package sampler

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// an entry in a share's directory listing
type Entry struct {
	// the name of the file or folder (no path components)
	Name string
	// true if the entry is a folder
	IsDir bool
	// size of the file in bytes (0 for folders)
	Size int64
}

// Share is an interface for the storage underlying a big data file share.
// All paths are relative to the share's root and use forward slashes.
type Share interface {
	// returns an error if the share's root can't be accessed or isn't a folder
	Stat(ctx context.Context) error
	// lists the entries within the given folder ("" for the root)
	ReadDir(ctx context.Context, dir string) ([]Entry, error)
	// opens the file with the given path for reading
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// releases any resources held by the share
	Close() error
}

// the kinds of storage that can back a datastore
type Kind int

const (
	KindFileShare Kind = iota
	KindHDFS
	KindHive
	KindCloudStore
)

func (k Kind) String() string {
	switch k {
	case KindHDFS:
		return "HDFS"
	case KindHive:
		return "Hive"
	case KindCloudStore:
		return "CloudStore"
	default:
		return "FileShare"
	}
}

// cloud storage URL schemes
var cloudSchemes = map[string]bool{
	"s3":    true,
	"s3a":   true,
	"gs":    true,
	"abfs":  true,
	"abfss": true,
	"wasb":  true,
	"wasbs": true,
}

// determines the kind of storage a path refers to from its scheme
func KindForPath(path string) Kind {
	colon := strings.Index(path, "://")
	if colon == -1 {
		return KindFileShare // absolute path or UNC share
	}
	scheme := strings.ToLower(path[:colon])
	switch {
	case scheme == "hdfs":
		return KindHDFS
	case scheme == "hive":
		return KindHive
	case cloudSchemes[scheme]:
		return KindCloudStore
	default:
		return KindFileShare
	}
}

// creates a Share for the given path, selecting an implementation by the
// path's kind
func OpenShare(path string) (Share, error) {
	switch KindForPath(path) {
	case KindHDFS:
		return NewHDFSShare(path)
	case KindCloudStore:
		u, err := url.Parse(path)
		if err != nil {
			return nil, &InvalidPathError{Path: path, Message: err.Error()}
		}
		switch strings.ToLower(u.Scheme) {
		case "s3", "s3a":
			return NewS3Share(path)
		case "gs":
			return NewGCSShare(context.Background(), path)
		case "abfs", "abfss", "wasb", "wasbs":
			return NewAzureShare(path)
		default:
			return nil, &UnsupportedShareError{Path: path, Scheme: u.Scheme}
		}
	case KindHive:
		return nil, &UnsupportedShareError{Path: path, Scheme: "hive"}
	default:
		return NewLocalShare(path)
	}
}

// returns true if the given file or folder name should be skipped when
// sampling (hidden files and Hadoop bookkeeping files like _SUCCESS)
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// joins path components of a share-relative path
func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
