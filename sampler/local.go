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
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// This type implements a share backed by a folder on a filesystem mounted by
// the server (including network file shares).
type LocalShare struct {
	root string
}

// creates a share rooted at the given absolute path or file:// URL
func NewLocalShare(path string) (*LocalShare, error) {
	root := path
	if strings.HasPrefix(strings.ToLower(path), "file://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, &InvalidPathError{Path: path, Message: err.Error()}
		}
		root = u.Path
	}
	if !filepath.IsAbs(root) && !strings.HasPrefix(root, `\\`) {
		return nil, &InvalidPathError{Path: path, Message: "path must be absolute"}
	}
	return &LocalShare{root: filepath.Clean(root)}, nil
}

func (share *LocalShare) Root() string {
	return share.root
}

func (share *LocalShare) Stat(ctx context.Context) error {
	info, err := os.Stat(share.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &NotAFolderError{Path: share.root}
	}
	return nil
}

func (share *LocalShare) ReadDir(ctx context.Context, dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(filepath.Join(share.root, filepath.FromSlash(dir)))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		entry := Entry{
			Name:  dirEntry.Name(),
			IsDir: dirEntry.IsDir(),
		}
		if !entry.IsDir {
			if info, err := dirEntry.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (share *LocalShare) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(share.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (share *LocalShare) Close() error {
	return nil
}
