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
	"errors"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// This type implements a share backed by a prefix within a Google Cloud
// Storage bucket, addressed as gs://bucket/prefix. Credentials are found
// the usual way (GOOGLE_APPLICATION_CREDENTIALS, gcloud, or the metadata
// server).
type GCSShare struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

func NewGCSShare(ctx context.Context, shareURL string) (*GCSShare, error) {
	u, err := url.Parse(shareURL)
	if err != nil {
		return nil, &InvalidPathError{Path: shareURL, Message: err.Error()}
	}
	if u.Host == "" {
		return nil, &InvalidPathError{Path: shareURL, Message: "no bucket given"}
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	prefix := strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &GCSShare{
		client: client,
		bucket: client.Bucket(u.Host),
		name:   u.Host,
		prefix: prefix,
	}, nil
}

func (share *GCSShare) Stat(ctx context.Context) error {
	if _, err := share.bucket.Attrs(ctx); err != nil {
		return err
	}
	if share.prefix != "" {
		// the prefix must contain at least one object to count as a folder
		it := share.bucket.Objects(ctx, &storage.Query{Prefix: share.prefix})
		_, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return &NotAFolderError{Path: "gs://" + share.name + "/" + share.prefix}
		}
		return err
	}
	return nil
}

func (share *GCSShare) ReadDir(ctx context.Context, dir string) ([]Entry, error) {
	prefix := share.prefix
	if dir != "" {
		prefix += strings.Trim(dir, "/") + "/"
	}
	entries := make([]Entry, 0)
	it := share.bucket.Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		if attrs.Prefix != "" {
			name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/")
			entries = append(entries, Entry{Name: name, IsDir: true})
			continue
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if name == "" { // the folder marker object itself
			continue
		}
		entries = append(entries, Entry{
			Name: name,
			Size: attrs.Size,
		})
	}
	return entries, nil
}

func (share *GCSShare) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := share.bucket.Object(share.prefix + path).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (share *GCSShare) Close() error {
	return share.client.Close()
}
