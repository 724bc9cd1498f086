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

// Package cache stores completed manifests on the client so they can be read
// without contacting the portal.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/kbase/bdfs/manifest"
)

const bucketName = "manifests"

// indicates that a manifest isn't ready and can't be cached
type NotCacheableError struct {
	Id     uuid.UUID
	Status manifest.Status
}

func (e NotCacheableError) Error() string {
	return fmt.Sprintf("The manifest for datastore %s can't be cached (status: %s)",
		e.Id.String(), e.Status)
}

// A Cache holds ready manifests keyed by portal and datastore ID in a bbolt
// database.
type Cache struct {
	db *bolt.DB
}

// opens (creating if needed) the cache database at the given path; a leading
// "~/" refers to the user's home directory
func Open(path string) (*Cache, error) {
	if rest, found := strings.CutPrefix(path, "~/"); found {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, rest)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func key(portalURL string, id uuid.UUID) []byte {
	return []byte(portalURL + "|" + id.String())
}

// stores a ready manifest for the given datastore
func (c *Cache) Put(portalURL string, id uuid.UUID, m manifest.Manifest) error {
	if !m.Ready() {
		return &NotCacheableError{Id: id, Status: m.Status}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(key(portalURL, id), data)
	})
}

// fetches the cached manifest for the given datastore, returning false if
// there isn't one
func (c *Cache) Get(portalURL string, id uuid.UUID) (manifest.Manifest, bool, error) {
	var m manifest.Manifest
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get(key(portalURL, id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &m)
	})
	return m, found, err
}

// removes any cached manifest for the given datastore
func (c *Cache) Delete(portalURL string, id uuid.UUID) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete(key(portalURL, id))
	})
}

func (c *Cache) Close() error {
	return c.db.Close()
}
