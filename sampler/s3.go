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
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// This type implements a share backed by a prefix within an S3 bucket,
// addressed as s3://bucket/prefix. A region may be given with a "region"
// query parameter; otherwise the shared AWS configuration is used. Folders
// are the common prefixes of "/"-delimited object keys.
type S3Share struct {
	svc    *s3.S3
	bucket string
	prefix string
}

func NewS3Share(shareURL string) (*S3Share, error) {
	u, err := url.Parse(shareURL)
	if err != nil {
		return nil, &InvalidPathError{Path: shareURL, Message: err.Error()}
	}
	if u.Host == "" {
		return nil, &InvalidPathError{Path: shareURL, Message: "no bucket given"}
	}
	cfg := aws.NewConfig()
	if region := u.Query().Get("region"); region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	prefix := strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Share{
		svc:    s3.New(sess),
		bucket: u.Host,
		prefix: prefix,
	}, nil
}

func (share *S3Share) Stat(ctx context.Context) error {
	_, err := share.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(share.bucket),
	})
	if err != nil {
		return err
	}
	if share.prefix != "" {
		// the prefix must contain at least one object to count as a folder
		out, err := share.svc.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(share.bucket),
			Prefix:  aws.String(share.prefix),
			MaxKeys: aws.Int64(1),
		})
		if err != nil {
			return err
		}
		if aws.Int64Value(out.KeyCount) == 0 {
			return &NotAFolderError{Path: "s3://" + share.bucket + "/" + share.prefix}
		}
	}
	return nil
}

func (share *S3Share) ReadDir(ctx context.Context, dir string) ([]Entry, error) {
	prefix := share.prefix
	if dir != "" {
		prefix += strings.Trim(dir, "/") + "/"
	}
	entries := make([]Entry, 0)
	err := share.svc.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(share.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, commonPrefix := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(commonPrefix.Prefix), prefix), "/")
			entries = append(entries, Entry{Name: name, IsDir: true})
		}
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(object.Key), prefix)
			if name == "" { // the folder marker object itself
				continue
			}
			entries = append(entries, Entry{
				Name: name,
				Size: aws.Int64Value(object.Size),
			})
		}
		return true
	})
	return entries, err
}

func (share *S3Share) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := share.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(share.bucket),
		Key:    aws.String(share.prefix + path),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (share *S3Share) Close() error {
	return nil
}
