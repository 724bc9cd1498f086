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
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// This type implements a share backed by a prefix within an Azure blob
// container, addressed as abfs[s]://container@account.dfs.core.windows.net/prefix
// or wasb[s]://container@account.blob.core.windows.net/prefix. The account
// key is taken from AZURE_STORAGE_KEY, or a SAS token from
// AZURE_STORAGE_SAS_TOKEN; without either the container must allow anonymous
// reads.
type AzureShare struct {
	client    *azblob.Client
	container *container.Client
	name      string
	prefix    string
}

// the parts of an Azure blob share URL
type azureLocation struct {
	Account, Container, Prefix, ServiceURL string
}

func parseAzureURL(shareURL string) (azureLocation, error) {
	var loc azureLocation
	u, err := url.Parse(shareURL)
	if err != nil {
		return loc, &InvalidPathError{Path: shareURL, Message: err.Error()}
	}
	loc.Container = u.User.Username()
	if loc.Container == "" {
		return loc, &InvalidPathError{Path: shareURL, Message: "no container given"}
	}
	host := strings.ToLower(u.Hostname())
	account, suffix, found := strings.Cut(host, ".")
	if !found || account == "" {
		return loc, &InvalidPathError{Path: shareURL, Message: "no storage account given"}
	}
	loc.Account = account
	// Data Lake (dfs) endpoints share their accounts with blob endpoints
	suffix = strings.Replace(suffix, "dfs.", "blob.", 1)
	loc.ServiceURL = fmt.Sprintf("https://%s.%s/", account, suffix)
	loc.Prefix = strings.Trim(u.Path, "/")
	if loc.Prefix != "" {
		loc.Prefix += "/"
	}
	return loc, nil
}

func NewAzureShare(shareURL string) (*AzureShare, error) {
	loc, err := parseAzureURL(shareURL)
	if err != nil {
		return nil, err
	}
	var client *azblob.Client
	if key := os.Getenv("AZURE_STORAGE_KEY"); key != "" {
		cred, err := azblob.NewSharedKeyCredential(loc.Account, key)
		if err != nil {
			return nil, err
		}
		client, err = azblob.NewClientWithSharedKeyCredential(loc.ServiceURL, cred, nil)
		if err != nil {
			return nil, err
		}
	} else {
		serviceURL := loc.ServiceURL
		if sas := os.Getenv("AZURE_STORAGE_SAS_TOKEN"); sas != "" {
			serviceURL += "?" + strings.TrimPrefix(sas, "?")
		}
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
		if err != nil {
			return nil, err
		}
	}
	return &AzureShare{
		client:    client,
		container: client.ServiceClient().NewContainerClient(loc.Container),
		name:      loc.Container,
		prefix:    loc.Prefix,
	}, nil
}

func (share *AzureShare) Stat(ctx context.Context) error {
	if _, err := share.container.GetProperties(ctx, nil); err != nil {
		return err
	}
	if share.prefix != "" {
		// the prefix must contain at least one blob to count as a folder
		maxResults := int32(1)
		pager := share.container.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
			Prefix:     &share.prefix,
			MaxResults: &maxResults,
		})
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		if page.Segment == nil || len(page.Segment.BlobItems) == 0 {
			return &NotAFolderError{Path: share.name + "/" + share.prefix}
		}
	}
	return nil
}

func (share *AzureShare) ReadDir(ctx context.Context, dir string) ([]Entry, error) {
	prefix := share.prefix
	if dir != "" {
		prefix += strings.Trim(dir, "/") + "/"
	}
	entries := make([]Entry, 0)
	pager := share.container.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if page.Segment == nil {
			continue
		}
		for _, blobPrefix := range page.Segment.BlobPrefixes {
			if blobPrefix.Name == nil {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(*blobPrefix.Name, prefix), "/")
			entries = append(entries, Entry{Name: name, IsDir: true})
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := strings.TrimPrefix(*item.Name, prefix)
			if name == "" { // the folder marker blob itself
				continue
			}
			entry := Entry{Name: name}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				entry.Size = *item.Properties.ContentLength
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (share *AzureShare) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := share.client.DownloadStream(ctx, share.name, share.prefix+path, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (share *AzureShare) Close() error {
	return nil
}
