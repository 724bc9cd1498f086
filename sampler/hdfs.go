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
	"path"

	"github.com/colinmarc/hdfs/v2"
)

// This type implements a share backed by a folder in HDFS, addressed as
// hdfs://namenode:port/path/to/share. The HDFS user is taken from the URL
// (hdfs://user@namenode/...), then HADOOP_USER_NAME, then USER.
type HDFSShare struct {
	client *hdfs.Client
	root   string
}

func NewHDFSShare(shareURL string) (*HDFSShare, error) {
	u, err := url.Parse(shareURL)
	if err != nil {
		return nil, &InvalidPathError{Path: shareURL, Message: err.Error()}
	}
	if u.Host == "" {
		return nil, &InvalidPathError{Path: shareURL, Message: "no namenode address given"}
	}
	user := u.User.Username()
	if user == "" {
		user = os.Getenv("HADOOP_USER_NAME")
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: []string{u.Host},
		User:      user,
	})
	if err != nil {
		return nil, err
	}
	root := u.Path
	if root == "" {
		root = "/"
	}
	return &HDFSShare{
		client: client,
		root:   path.Clean(root),
	}, nil
}

func (share *HDFSShare) Stat(ctx context.Context) error {
	info, err := share.client.Stat(share.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &NotAFolderError{Path: share.root}
	}
	return nil
}

func (share *HDFSShare) ReadDir(ctx context.Context, dir string) ([]Entry, error) {
	infos, err := share.client.ReadDir(path.Join(share.root, dir))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(infos))
	for i, info := range infos {
		entries[i] = Entry{
			Name:  info.Name(),
			IsDir: info.IsDir(),
		}
		if !info.IsDir() {
			entries[i].Size = info.Size()
		}
	}
	return entries, nil
}

func (share *HDFSShare) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := share.client.Open(path.Join(share.root, name))
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (share *HDFSShare) Close() error {
	return share.client.Close()
}
