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

package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/kbase/bdfs/manifest"
)

// the registry's schema
const registrySchema = `
CREATE TABLE IF NOT EXISTS datastores (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	type     TEXT NOT NULL,
	path     TEXT NOT NULL,
	created  TEXT NOT NULL,
	owner    TEXT NOT NULL,
	manifest TEXT NOT NULL,
	-- bumped whenever the share is (re)submitted for sampling
	generation INTEGER NOT NULL DEFAULT 1
);
`

// fixed-width timestamps sort lexically in the registry
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// columns selected for datastore records
const datastoreColumns = `id, name, type, path, created, owner, manifest, generation`

// a registered datastore as stored by the service
type record struct {
	Id       uuid.UUID
	Name     string
	Type     string
	Path     string
	Created  time.Time
	Owner    string
	Manifest manifest.Manifest
	// sampling generation, which identifies the latest sampling request
	Generation int64
}

// A registry of datastores backed by a single SQLite connection. Access is
// serialized by a mutex.
type registry struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// opens (creating if needed) the registry database at the given path, or an
// in-memory registry if the path is blank
func openRegistry(path string) (*registry, error) {
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == "" {
		path = ":memory:"
	} else {
		flags = append(flags, sqlite.OpenWAL)
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, err
	}
	if err := sqlitex.ExecuteScript(conn, registrySchema, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &registry{conn: conn}, nil
}

func (r *registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// adds a new record, returning a NameConflictError if its name is taken
func (r *registry) Insert(rec record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	manifestJSON, err := json.Marshal(rec.Manifest)
	if err != nil {
		return err
	}
	err = sqlitex.ExecuteTransient(r.conn,
		`INSERT INTO datastores (`+datastoreColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				rec.Id.String(), rec.Name, rec.Type, rec.Path,
				rec.Created.UTC().Format(timeLayout), rec.Owner, string(manifestJSON),
				rec.Generation,
			},
		})
	if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique ||
		sqlite.ErrCode(err) == sqlite.ResultConstraintPrimaryKey {
		return &NameConflictError{Name: rec.Name}
	}
	return err
}

// returns true if a record with the given name exists
func (r *registry) NameTaken(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	taken := false
	err := sqlitex.ExecuteTransient(r.conn, `SELECT 1 FROM datastores WHERE name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				taken = true
				return nil
			},
		})
	return taken, err
}

// returns all records in order of creation
func (r *registry) List() ([]record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]record, 0)
	err := sqlitex.ExecuteTransient(r.conn,
		`SELECT `+datastoreColumns+` FROM datastores ORDER BY created, name`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rec, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			},
		})
	return records, err
}

// returns the record with the given ID, or a NotFoundError
func (r *registry) Get(id uuid.UUID) (record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *registry) get(id uuid.UUID) (record, error) {
	var rec record
	found := false
	err := sqlitex.ExecuteTransient(r.conn,
		`SELECT `+datastoreColumns+` FROM datastores WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				rec, err = scanRecord(stmt)
				found = true
				return err
			},
		})
	if err == nil && !found {
		err = &NotFoundError{Id: id}
	}
	return rec, err
}

// resets the manifest of the record with the given ID to "processing" and
// starts a new sampling generation, returning the updated record
func (r *registry) Resample(id uuid.UUID) (record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	manifestJSON, err := json.Marshal(manifest.Processing())
	if err != nil {
		return record{}, err
	}
	err = sqlitex.ExecuteTransient(r.conn,
		`UPDATE datastores SET manifest = ?, generation = generation + 1 WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{string(manifestJSON), id.String()}})
	if err != nil {
		return record{}, err
	}
	if r.conn.Changes() == 0 {
		return record{}, &NotFoundError{Id: id}
	}
	return r.get(id)
}

// removes the record with the given ID, returning a NotFoundError if it
// doesn't exist
func (r *registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := sqlitex.ExecuteTransient(r.conn, `DELETE FROM datastores WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{id.String()}})
	if err == nil && r.conn.Changes() == 0 {
		err = &NotFoundError{Id: id}
	}
	return err
}

// stores the manifest produced by the given sampling generation for the
// record with the given ID, returning false (and storing nothing) if the
// record has since been deleted or resubmitted for sampling
func (r *registry) SetManifest(id uuid.UUID, generation int64, m manifest.Manifest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return false, err
	}
	err = sqlitex.ExecuteTransient(r.conn,
		`UPDATE datastores SET manifest = ? WHERE id = ? AND generation = ?`,
		&sqlitex.ExecOptions{Args: []any{string(manifestJSON), id.String(), generation}})
	if err != nil {
		return false, err
	}
	return r.conn.Changes() > 0, nil
}

// reads a record from the current row of a query on datastoreColumns
func scanRecord(stmt *sqlite.Stmt) (record, error) {
	var rec record
	var err error
	rec.Id, err = uuid.Parse(stmt.ColumnText(0))
	if err != nil {
		return rec, fmt.Errorf("Invalid datastore ID in registry: %s", err)
	}
	rec.Name = stmt.ColumnText(1)
	rec.Type = stmt.ColumnText(2)
	rec.Path = stmt.ColumnText(3)
	rec.Created, err = time.Parse(timeLayout, stmt.ColumnText(4))
	if err != nil {
		return rec, err
	}
	rec.Owner = stmt.ColumnText(5)
	rec.Generation = stmt.ColumnInt64(7)
	err = json.Unmarshal([]byte(stmt.ColumnText(6)), &rec.Manifest)
	if err == nil && rec.Manifest.Datasets == nil {
		rec.Manifest.Datasets = []manifest.Dataset{}
	}
	return rec, err
}
