package server

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/kbase/bdfs/manifest"
)

func newRecord(name string, created time.Time) record {
	return record{
		Id:         uuid.New(),
		Name:       name,
		Type:       "FileShare",
		Path:       "/data/" + name,
		Created:    created,
		Owner:      "analyst",
		Manifest:   manifest.Processing(),
		Generation: 1,
	}
}

func TestRegistryOrdersByCreation(t *testing.T) {
	assert := assert.New(t)
	reg, err := openRegistry(filepath.Join(t.TempDir(), "datastores.db"))
	assert.Nil(err)
	defer reg.Close()

	// fractional seconds of different lengths must still sort correctly
	base := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)
	assert.Nil(reg.Insert(newRecord("second", base.Add(120*time.Millisecond))))
	assert.Nil(reg.Insert(newRecord("first", base.Add(100*time.Millisecond))))
	assert.Nil(reg.Insert(newRecord("third", base.Add(time.Second))))

	records, err := reg.List()
	assert.Nil(err)
	assert.Equal(3, len(records))
	assert.Equal("first", records[0].Name)
	assert.Equal("second", records[1].Name)
	assert.Equal("third", records[2].Name)
	assert.True(records[0].Created.Equal(base.Add(100 * time.Millisecond)))
	assert.NotNil(records[0].Manifest.Datasets)
}

func TestRegistryConflictsAndMissingRecords(t *testing.T) {
	assert := assert.New(t)
	reg, err := openRegistry("")
	assert.Nil(err)
	defer reg.Close()

	rec := newRecord("hazards", time.Now())
	assert.Nil(reg.Insert(rec))
	taken, err := reg.NameTaken("hazards")
	assert.Nil(err)
	assert.True(taken)

	err = reg.Insert(newRecord("hazards", time.Now()))
	var conflict *NameConflictError
	assert.True(errors.As(err, &conflict))

	m := manifest.Manifest{
		Status:   manifest.StatusFailed,
		Message:  "share vanished",
		Datasets: []manifest.Dataset{},
	}
	stored, err := reg.SetManifest(rec.Id, rec.Generation, m)
	assert.Nil(err)
	assert.True(stored)
	fetched, err := reg.Get(rec.Id)
	assert.Nil(err)
	assert.Equal(m, fetched.Manifest)

	assert.Nil(reg.Delete(rec.Id))
	var notFound *NotFoundError
	_, err = reg.Get(rec.Id)
	assert.True(errors.As(err, &notFound))
	assert.True(errors.As(reg.Delete(rec.Id), &notFound))
	taken, _ = reg.NameTaken("hazards")
	assert.False(taken)
}

func TestRegistryDiscardsSupersededManifests(t *testing.T) {
	assert := assert.New(t)
	reg, err := openRegistry("")
	assert.Nil(err)
	defer reg.Close()

	rec := newRecord("hazards", time.Now())
	assert.Nil(reg.Insert(rec))

	resampled, err := reg.Resample(rec.Id)
	assert.Nil(err)
	assert.Equal(int64(2), resampled.Generation)
	assert.Equal(manifest.StatusProcessing, resampled.Manifest.Status)

	// a manifest from the first generation arrives after the refresh
	stale := manifest.Manifest{
		Status:   manifest.StatusReady,
		Datasets: []manifest.Dataset{{Name: "earthquakes"}},
	}
	stored, err := reg.SetManifest(rec.Id, rec.Generation, stale)
	assert.Nil(err)
	assert.False(stored)
	fetched, err := reg.Get(rec.Id)
	assert.Nil(err)
	assert.Equal(manifest.StatusProcessing, fetched.Manifest.Status)

	fresh := manifest.Manifest{
		Status:   manifest.StatusReady,
		Datasets: []manifest.Dataset{{Name: "earthquakes"}, {Name: "wildfires"}},
	}
	stored, err = reg.SetManifest(rec.Id, resampled.Generation, fresh)
	assert.Nil(err)
	assert.True(stored)
	fetched, err = reg.Get(rec.Id)
	assert.Nil(err)
	assert.Equal([]string{"earthquakes", "wildfires"}, fetched.Manifest.DatasetNames())

	// deleted records take no manifests
	assert.Nil(reg.Delete(rec.Id))
	stored, err = reg.SetManifest(rec.Id, resampled.Generation, fresh)
	assert.Nil(err)
	assert.False(stored)
	_, err = reg.Resample(rec.Id)
	var notFound *NotFoundError
	assert.True(errors.As(err, &notFound))
}
