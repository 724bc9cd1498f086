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

// Package datastores registers big data file shares with a portal and reads
// the datasets and manifests the portal generates for them.
package datastores

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kbase/bdfs/cache"
	"github.com/kbase/bdfs/config"
	"github.com/kbase/bdfs/manifest"
	"github.com/kbase/bdfs/portal"
)

// the kind of storage underlying a datastore
type Type string

const (
	TypeFileShare  Type = "FileShare"
	TypeHDFS       Type = "HDFS"
	TypeHive       Type = "Hive"
	TypeCloudStore Type = "CloudStore"
)

// A handle to a big data file share registered with a portal.
type Datastore struct {
	// unique identifier assigned by the portal
	Id uuid.UUID `json:"id"`
	// the name given at registration
	Name string `json:"name"`
	// the datastore's path within the portal ("/bigDataFileShares/<name>")
	Title string `json:"title"`
	// the kind of storage underlying the datastore
	Type Type `json:"type"`
	// the path or URL of the share's root folder
	Path string `json:"path"`
	// the time at which the datastore was registered
	Created time.Time `json:"created"`
	// the status of the datastore's manifest when this handle was fetched
	Status manifest.Status `json:"status"`

	manager *Manager
}

// A Manager enumerates, registers, and removes datastores using a portal
// session.
type Manager struct {
	session *portal.Session
	// if non-nil, ready manifests are stored here and read from here
	Cache *cache.Cache
}

// creates a manager that uses the given session
func NewManager(session *portal.Session) *Manager {
	return &Manager{session: session}
}

// decodes datastores from a response body and attaches them to the manager
func (m *Manager) datastores(data []byte) ([]*Datastore, error) {
	var datastores []*Datastore
	if err := json.Unmarshal(data, &datastores); err != nil {
		return nil, err
	}
	for _, ds := range datastores {
		ds.manager = m
	}
	if datastores == nil {
		datastores = []*Datastore{}
	}
	return datastores, nil
}

func (m *Manager) datastore(data []byte) (*Datastore, error) {
	var ds Datastore
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, err
	}
	ds.manager = m
	return &ds, nil
}

// returns all big data file share datastores visible to the session, in the
// order given by the portal
func (m *Manager) Search(ctx context.Context) ([]*Datastore, error) {
	data, err := m.session.Get(ctx, "datastores", nil)
	if err != nil {
		return nil, err
	}
	return m.datastores(data)
}

// registers the share with the given path as a big data file share with the
// given name, triggering the generation of its manifest
func (m *Manager) AddBigData(ctx context.Context, name, path string) (*Datastore, error) {
	slog.Info(fmt.Sprintf("Registering big data file share '%s' (%s)...", name, path))
	data, err := m.session.Post(ctx, "datastores", map[string]string{
		"name": name,
		"path": path,
	})
	if err != nil {
		return nil, translate(err, name, path)
	}
	return m.datastore(data)
}

// fetches the datastore with the given ID
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Datastore, error) {
	data, err := m.session.Get(ctx, "datastores/"+id.String(), nil)
	if err != nil {
		return nil, translate(err, id.String(), "")
	}
	return m.datastore(data)
}

// fetches the datastore with the given name
func (m *Manager) Find(ctx context.Context, name string) (*Datastore, error) {
	datastores, err := m.Search(ctx)
	if err != nil {
		return nil, err
	}
	for _, ds := range datastores {
		if ds.Name == name {
			return ds, nil
		}
	}
	return nil, &NotFoundError{Datastore: name}
}

// removes the registration for the datastore with the given ID
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	slog.Info(fmt.Sprintf("Deleting datastore %s...", id.String()))
	if err := m.session.Delete(ctx, "datastores/"+id.String()); err != nil {
		return translate(err, id.String(), "")
	}
	if m.Cache != nil {
		return m.Cache.Delete(m.session.URL(), id)
	}
	return nil
}

// returns the descriptions of the datasets within the datastore, which are
// empty until its manifest is ready
func (ds *Datastore) Datasets(ctx context.Context) ([]manifest.Dataset, error) {
	if m, found := ds.cachedManifest(); found {
		return m.Datasets, nil
	}
	data, err := ds.manager.session.Get(ctx, ds.resource("datasets"), nil)
	if err != nil {
		return nil, translate(err, ds.Name, ds.Path)
	}
	var datasets []manifest.Dataset
	if err := json.Unmarshal(data, &datasets); err != nil {
		return nil, err
	}
	if datasets == nil {
		datasets = []manifest.Dataset{}
	}
	return datasets, nil
}

// returns the datastore's manifest, which has status "processing" and no
// datasets until the portal finishes sampling the share
func (ds *Datastore) Manifest(ctx context.Context) (manifest.Manifest, error) {
	if m, found := ds.cachedManifest(); found {
		return m, nil
	}
	var m manifest.Manifest
	data, err := ds.manager.session.Get(ctx, ds.resource("manifest"), nil)
	if err != nil {
		return m, translate(err, ds.Name, ds.Path)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	if m.Datasets == nil {
		m.Datasets = []manifest.Dataset{}
	}
	ds.Status = m.Status
	if m.Ready() && ds.manager.Cache != nil {
		if err := ds.manager.Cache.Put(ds.manager.session.URL(), ds.Id, m); err != nil {
			slog.Warn(fmt.Sprintf("Couldn't cache manifest for datastore '%s': %s", ds.Name, err))
		}
	}
	return m, nil
}

// asks the portal to sample the datastore's share again, discarding any
// cached manifest
func (ds *Datastore) Refresh(ctx context.Context) error {
	slog.Info(fmt.Sprintf("Refreshing datastore '%s'...", ds.Name))
	if ds.manager.Cache != nil {
		if err := ds.manager.Cache.Delete(ds.manager.session.URL(), ds.Id); err != nil {
			return err
		}
	}
	if _, err := ds.manager.session.Post(ctx, ds.resource("refresh"), nil); err != nil {
		return translate(err, ds.Name, ds.Path)
	}
	ds.Status = manifest.StatusProcessing
	return nil
}

func (ds *Datastore) resource(name string) string {
	return fmt.Sprintf("datastores/%s/%s", ds.Id.String(), name)
}

func (ds *Datastore) cachedManifest() (manifest.Manifest, bool) {
	if ds.manager.Cache == nil {
		return manifest.Manifest{}, false
	}
	m, found, err := ds.manager.Cache.Get(ds.manager.session.URL(), ds.Id)
	if err != nil {
		slog.Warn(fmt.Sprintf("Couldn't read cached manifest for datastore '%s': %s", ds.Name, err))
		return m, false
	}
	return m, found
}

// options that govern waiting for a manifest
type WaitOptions struct {
	// time between successive manifest requests
	PollInterval time.Duration
	// maximum time to wait (0: wait until the context is done)
	MaxWait time.Duration
}

// returns wait options from the manifests section of the configuration
func WaitOptionsFromConfig() WaitOptions {
	return WaitOptions{
		PollInterval: time.Duration(config.Manifests.PollInterval * float64(time.Second)),
		MaxWait:      time.Duration(config.Manifests.MaxWait * float64(time.Second)),
	}
}

// polls the datastore's manifest until it's ready, returning it. Returns a
// ManifestFailedError if the portal couldn't generate it, a
// ManifestTimeoutError if it's not ready within opts.MaxWait, or the context's
// error if the context is done first.
func (ds *Datastore) WaitForManifest(ctx context.Context, opts WaitOptions) (manifest.Manifest, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	var deadline <-chan time.Time
	if opts.MaxWait > 0 {
		timer := time.NewTimer(opts.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		m, err := ds.Manifest(ctx)
		if err != nil {
			return m, err
		}
		switch m.Status {
		case manifest.StatusReady:
			return m, nil
		case manifest.StatusFailed:
			return m, &ManifestFailedError{Datastore: ds.Name, Message: m.Message}
		}
		slog.Debug(fmt.Sprintf("Manifest for datastore '%s' is not ready; waiting...", ds.Name))
		select {
		case <-ticker.C:
		case <-deadline:
			return m, &ManifestTimeoutError{Datastore: ds.Name, Wait: opts.MaxWait}
		case <-ctx.Done():
			return m, ctx.Err()
		}
	}
}
