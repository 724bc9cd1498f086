package datastores

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/kbase/bdfs/bdfstest"
	"github.com/kbase/bdfs/cache"
	"github.com/kbase/bdfs/config"
	"github.com/kbase/bdfs/manifest"
	"github.com/kbase/bdfs/portal"
	"github.com/kbase/bdfs/server"
)

// a service configuration whose sampling delay is filled in by each test
const serviceConfigTemplate string = `
manifests:
  poll_interval: 0.5
  max_wait: 10
service:
  max_connections: 10
  token_expiration: 5
  sample_size: 100
  sampling_delay: %g
  users:
    analyst: s3cr3t
`

// fast polling for tests
var testWait = WaitOptions{
	PollInterval: 20 * time.Millisecond,
	MaxWait:      10 * time.Second,
}

// starts an in-process admin service with the given sampling delay (seconds)
// and returns a manager whose session is connected to it
func newTestManager(t *testing.T, delay float64) *Manager {
	err := config.Init([]byte(fmt.Sprintf(serviceConfigTemplate, delay)))
	assert.Nil(t, err)
	service, err := server.New()
	assert.Nil(t, err)
	ts := httptest.NewServer(service.Handler())
	t.Cleanup(func() {
		ts.Close()
		service.Close()
	})
	session, err := portal.NewSession(ts.URL, "analyst", "s3cr3t", 5*time.Second)
	assert.Nil(t, err)
	assert.Nil(t, session.Connect(context.Background()))
	return NewManager(session)
}

// creates a share in a temporary folder holding the given files
func newShare(t *testing.T, files map[string][]byte) string {
	root := t.TempDir()
	assert.Nil(t, bdfstest.WriteShare(root, files))
	return root
}

func TestSearchReturnsRegisteredDatastores(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 0)

	datastores, err := mgr.Search(ctx)
	assert.Nil(err)
	assert.NotNil(datastores)
	assert.Equal(0, len(datastores))

	hazards, err := mgr.AddBigData(ctx, "hazards", newShare(t, bdfstest.NaturalHazardsShare()))
	assert.Nil(err)
	climate, err := mgr.AddBigData(ctx, "climate", newShare(t, map[string][]byte{
		"temperatures/daily.csv": []byte("station,date,max_temp\nKSEA,2023-07-01,31.5\n"),
	}))
	assert.Nil(err)

	datastores, err = mgr.Search(ctx)
	assert.Nil(err)
	assert.Equal(2, len(datastores))
	names := []string{datastores[0].Name, datastores[1].Name}
	sort.Strings(names)
	assert.Equal([]string{"climate", "hazards"}, names)
	for _, ds := range datastores {
		assert.Equal(TypeFileShare, ds.Type)
		switch ds.Name {
		case "hazards":
			assert.Equal(hazards.Id, ds.Id)
		case "climate":
			assert.Equal(climate.Id, ds.Id)
		}
	}
}

func TestAddBigDataTitle(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t, 0)
	ds, err := mgr.AddBigData(context.Background(), "X", newShare(t, bdfstest.NaturalHazardsShare()))
	assert.Nil(err)
	assert.Equal("/bigDataFileShares/X", ds.Title)
	assert.Equal("X", ds.Name)
	assert.NotEqual(uuid.Nil, ds.Id)
	assert.Equal(manifest.StatusProcessing, ds.Status)

	// names with surrounding whitespace would not match their titles
	_, err = mgr.AddBigData(context.Background(), " Y ", newShare(t, bdfstest.NaturalHazardsShare()))
	var respErr *portal.ResponseError
	assert.True(errors.As(err, &respErr))
	assert.Equal(400, respErr.StatusCode)
}

func TestAddBigDataErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 0)
	root := newShare(t, bdfstest.NaturalHazardsShare())

	_, err := mgr.AddBigData(ctx, "hazards", root)
	assert.Nil(err)

	_, err = mgr.AddBigData(ctx, "hazards", root)
	var conflict *NameConflictError
	assert.True(errors.As(err, &conflict))
	assert.Equal("hazards", conflict.Name)

	missing := filepath.Join(root, "nowhere")
	_, err = mgr.AddBigData(ctx, "nowhere", missing)
	var unreachable *PathUnreachableError
	assert.True(errors.As(err, &unreachable))
	assert.Equal(missing, unreachable.Path)
	assert.NotEmpty(unreachable.Message)

	_, err = mgr.AddBigData(ctx, "warehouse", "hive://metastore:9083/default")
	assert.True(errors.As(err, &unreachable))
}

func TestDatasetsMatchSubfolders(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 0)
	ds, err := mgr.AddBigData(ctx, "hazards", newShare(t, bdfstest.NaturalHazardsShare()))
	assert.Nil(err)

	_, err = ds.WaitForManifest(ctx, testWait)
	assert.Nil(err)
	datasets, err := ds.Datasets(ctx)
	assert.Nil(err)
	assert.Equal(3, len(datasets)) // hidden folders are skipped
	for i, name := range []string{"earthquakes", "hurricanes", "observations"} {
		assert.Equal(name, datasets[i].Name)
	}
}

func TestManifestBeforeAndAfterSampling(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 0.5)
	ds, err := mgr.AddBigData(ctx, "hazards", newShare(t, bdfstest.NaturalHazardsShare()))
	assert.Nil(err)

	// stable "not ready" shape
	first, err := ds.Manifest(ctx)
	assert.Nil(err)
	assert.Equal(manifest.Processing(), first)
	second, err := ds.Manifest(ctx)
	assert.Nil(err)
	assert.Equal(first, second)
	datasets, err := ds.Datasets(ctx)
	assert.Nil(err)
	assert.Equal(0, len(datasets))

	// idempotent reads once ready
	ready, err := ds.WaitForManifest(ctx, testWait)
	assert.Nil(err)
	assert.True(ready.Ready())
	again, err := ds.Manifest(ctx)
	assert.Nil(err)
	assert.Equal(ready, again)
	assert.Equal(manifest.StatusReady, ds.Status)
}

func TestManifestListsEverySampledColumn(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 0)
	ds, err := mgr.AddBigData(ctx, "traffic", newShare(t, map[string][]byte{
		"counts/2023-01.csv": []byte("sensor_id,lon,lat,vehicles,recorded\n" +
			"17,-122.3,47.6,1204,2023-01-01 08:00:00\n"),
		"counts/2023-02.csv": []byte("sensor_id,lon,lat,vehicles,recorded,lane\n" +
			"17,-122.3,47.6,998,2023-02-01 08:00:00,2\n"),
	}))
	assert.Nil(err)

	m, err := ds.WaitForManifest(ctx, WaitOptions{PollInterval: 20 * time.Millisecond})
	assert.Nil(err)
	assert.Nil(m.Validate())
	counts, found := m.Dataset("counts")
	assert.True(found)
	// only the first file is sampled by default
	assert.Equal([]string{"sensor_id", "lon", "lat", "vehicles", "recorded"},
		counts.Schema.FieldNames())
	assert.Equal("point", counts.Geometry.GeometryType)
	assert.Equal(manifest.TimeInstant, counts.Time.TimeType)
}

func TestWaitForManifestFailures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mgr := newTestManager(t, 0)
	broken, err := mgr.AddBigData(ctx, "broken", newShare(t, map[string][]byte{
		"bad/data.csv": []byte("a,a\n1,2\n"),
	}))
	assert.Nil(err)
	_, err = broken.WaitForManifest(ctx, testWait)
	var failed *ManifestFailedError
	assert.True(errors.As(err, &failed))
	assert.Contains(failed.Message, "'a' appears at both 0 and 1")

	slow := newTestManager(t, 3600)
	ds, err := slow.AddBigData(ctx, "slow", newShare(t, bdfstest.NaturalHazardsShare()))
	assert.Nil(err)
	_, err = ds.WaitForManifest(ctx, WaitOptions{
		PollInterval: 10 * time.Millisecond,
		MaxWait:      50 * time.Millisecond,
	})
	var timeout *ManifestTimeoutError
	assert.True(errors.As(err, &timeout))

	canceled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = ds.WaitForManifest(canceled, WaitOptions{PollInterval: 10 * time.Millisecond})
	assert.True(errors.Is(err, context.DeadlineExceeded))
}

func TestGetFindAndDelete(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 0)
	ds, err := mgr.AddBigData(ctx, "hazards", newShare(t, bdfstest.NaturalHazardsShare()))
	assert.Nil(err)

	fetched, err := mgr.Get(ctx, ds.Id)
	assert.Nil(err)
	assert.Equal(ds.Title, fetched.Title)

	found, err := mgr.Find(ctx, "hazards")
	assert.Nil(err)
	assert.Equal(ds.Id, found.Id)

	var notFound *NotFoundError
	_, err = mgr.Find(ctx, "nope")
	assert.True(errors.As(err, &notFound))

	assert.Nil(mgr.Delete(ctx, ds.Id))
	_, err = mgr.Get(ctx, ds.Id)
	assert.True(errors.As(err, &notFound))
	_, err = ds.Manifest(ctx)
	assert.True(errors.As(err, &notFound))
	assert.True(errors.As(mgr.Delete(ctx, ds.Id), &notFound))
}

func TestRefreshResamples(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 0)
	root := newShare(t, bdfstest.NaturalHazardsShare())
	ds, err := mgr.AddBigData(ctx, "hazards", root)
	assert.Nil(err)
	_, err = ds.WaitForManifest(ctx, testWait)
	assert.Nil(err)

	assert.Nil(bdfstest.WriteShare(root, map[string][]byte{
		"wildfires/perimeters.csv": []byte("fire_id,acres\n1,1200\n"),
	}))
	assert.Nil(ds.Refresh(ctx))
	m, err := ds.WaitForManifest(ctx, testWait)
	assert.Nil(err)
	assert.Equal([]string{"earthquakes", "hurricanes", "observations", "wildfires"},
		m.DatasetNames())
}

func TestRefreshDuringSampling(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 1) // each manifest is stored a second after sampling
	root := newShare(t, bdfstest.NaturalHazardsShare())
	ds, err := mgr.AddBigData(ctx, "hazards", root)
	assert.Nil(err)

	// change the share and refresh while the first manifest is pending
	time.Sleep(300 * time.Millisecond)
	assert.Nil(bdfstest.WriteShare(root, map[string][]byte{
		"wildfires/perimeters.csv": []byte("fire_id,acres\n1,1200\n"),
	}))
	assert.Nil(ds.Refresh(ctx))

	m, err := ds.WaitForManifest(ctx, testWait)
	assert.Nil(err)
	assert.Equal([]string{"earthquakes", "hurricanes", "observations", "wildfires"},
		m.DatasetNames())
}

func TestManifestCache(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mgr := newTestManager(t, 0)
	c, err := cache.Open(filepath.Join(t.TempDir(), "manifests.db"))
	assert.Nil(err)
	defer c.Close()
	mgr.Cache = c

	ds, err := mgr.AddBigData(ctx, "hazards", newShare(t, bdfstest.NaturalHazardsShare()))
	assert.Nil(err)
	ready, err := ds.WaitForManifest(ctx, testWait)
	assert.Nil(err)

	cached, found, err := c.Get(mgr.session.URL(), ds.Id)
	assert.Nil(err)
	assert.True(found)
	assert.Equal(ready, cached)

	// refreshing discards the cached copy
	assert.Nil(ds.Refresh(ctx))
	_, found, _ = c.Get(mgr.session.URL(), ds.Id)
	assert.False(found)
}

func TestWaitOptionsFromConfig(t *testing.T) {
	assert := assert.New(t)
	err := config.Init([]byte(fmt.Sprintf(serviceConfigTemplate, 0.0)))
	assert.Nil(err)
	opts := WaitOptionsFromConfig()
	assert.Equal(500*time.Millisecond, opts.PollInterval)
	assert.Equal(10*time.Second, opts.MaxWait)
}

func TestMain(m *testing.M) {
	if os.Getenv("BDFS_DEBUG") != "" {
		bdfstest.EnableDebugLogging()
	}
	os.Exit(m.Run())
}
