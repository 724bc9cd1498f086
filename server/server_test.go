package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kbase/bdfs/bdfstest"
	"github.com/kbase/bdfs/config"
	"github.com/kbase/bdfs/manifest"
)

// a configuration for a service with a single user, in which the data
// directory and sampling delay are filled in by each test
const serviceConfigTemplate string = `
service:
  port: 8080
  max_connections: 10
  data_directory: %s
  token_expiration: 5
  sample_size: 50
  sampling_delay: %g
  users:
    analyst: s3cr3t
`

// a running test service and a token for its user
type testService struct {
	Service *Server
	HTTP    *httptest.Server
	Token   string
}

// configures and starts a service with the given data directory and sampling
// delay (seconds)
func newTestService(t *testing.T, dataDir string, delay float64) *testService {
	err := config.Init([]byte(fmt.Sprintf(serviceConfigTemplate, dataDir, delay)))
	assert.Nil(t, err)
	service, err := New()
	assert.Nil(t, err)
	ts := &testService{
		Service: service,
		HTTP:    httptest.NewServer(service.Handler()),
	}
	t.Cleanup(func() {
		ts.HTTP.Close()
		service.Close()
	})

	resp := ts.request(http.MethodPost, "/api/v1/tokens",
		TokenRequest{Username: "analyst", Password: "s3cr3t"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var token TokenResponse
	decode(t, resp, &token)
	ts.Token = token.Token
	return ts
}

// sends an authorized request to the service, encoding any given body as JSON
func (ts *testService) request(method, resource string, body any) *http.Response {
	var payload io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		payload = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, ts.HTTP.URL+resource, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.Token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	return resp
}

// registers a share, returning the response
func (ts *testService) register(name, path string) *http.Response {
	return ts.request(http.MethodPost, "/api/v1/datastores",
		RegistrationRequest{Name: name, Path: path})
}

// polls a datastore's manifest until it's no longer processing
func (ts *testService) waitForManifest(t *testing.T, id string) manifest.Manifest {
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp := ts.request(http.MethodGet, "/api/v1/datastores/"+id+"/manifest", nil)
		var m manifest.Manifest
		decode(t, resp, &m)
		if m.Status != manifest.StatusProcessing || time.Now().After(deadline) {
			return m
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	defer resp.Body.Close()
	err := json.NewDecoder(resp.Body).Decode(v)
	assert.Nil(t, err)
}

// creates a natural hazards share in a temporary folder
func hazardsShare(t *testing.T) string {
	root := t.TempDir()
	err := bdfstest.WriteShare(root, bdfstest.NaturalHazardsShare())
	assert.Nil(t, err)
	return root
}

func TestNewRequiresUsers(t *testing.T) {
	assert := assert.New(t)
	err := config.Init([]byte(`
portal:
  url: https://portal.example.com
  username: analyst
`))
	assert.Nil(err)
	_, err = New()
	assert.NotNil(err)
}

func TestQueryInfo(t *testing.T) {
	assert := assert.New(t)
	ts := newTestService(t, "", 0)
	ts.Token = ""

	resp := ts.request(http.MethodGet, "/api/v1/info", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var info InfoResponse
	decode(t, resp, &info)
	assert.Equal("BDFS admin", info.Name)
	assert.Equal(version, info.Version)
	assert.Equal([]string{"bigDataFileShares"}, info.Features)
}

func TestTokensRequireValidCredentials(t *testing.T) {
	assert := assert.New(t)
	ts := newTestService(t, "", 0)

	resp := ts.request(http.MethodPost, "/api/v1/tokens",
		TokenRequest{Username: "analyst", Password: "guess"})
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	ts.Token = ""
	resp = ts.request(http.MethodGet, "/api/v1/datastores", nil)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	ts.Token = "not-a-token"
	resp = ts.request(http.MethodGet, "/api/v1/datastores", nil)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterAndSample(t *testing.T) {
	assert := assert.New(t)
	ts := newTestService(t, t.TempDir(), 0)

	resp := ts.register("hazards", hazardsShare(t))
	assert.Equal(http.StatusCreated, resp.StatusCode)
	var ds DatastoreResponse
	decode(t, resp, &ds)
	assert.Equal("hazards", ds.Name)
	assert.Equal("/bigDataFileShares/hazards", ds.Title)
	assert.Equal("FileShare", ds.Type)

	m := ts.waitForManifest(t, ds.Id)
	assert.Equal(manifest.StatusReady, m.Status)
	assert.Equal([]string{"earthquakes", "hurricanes", "observations"}, m.DatasetNames())

	resp = ts.request(http.MethodGet, "/api/v1/datastores/"+ds.Id+"/datasets", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	var datasets []manifest.Dataset
	decode(t, resp, &datasets)
	assert.Equal(3, len(datasets))

	resp = ts.request(http.MethodGet, "/api/v1/datastores/"+ds.Id, nil)
	decode(t, resp, &ds)
	assert.Equal(manifest.StatusReady, ds.Status)

	resp = ts.request(http.MethodGet, "/api/v1/datastores", nil)
	var all []DatastoreResponse
	decode(t, resp, &all)
	assert.Equal(1, len(all))
	assert.Equal(ds.Id, all[0].Id)
}

func TestManifestIsStableWhileProcessing(t *testing.T) {
	assert := assert.New(t)
	ts := newTestService(t, "", 3600) // manifests are never stored

	resp := ts.register("hazards", hazardsShare(t))
	var ds DatastoreResponse
	decode(t, resp, &ds)
	assert.Equal(manifest.StatusProcessing, ds.Status)

	for i := 0; i < 3; i++ {
		resp = ts.request(http.MethodGet, "/api/v1/datastores/"+ds.Id+"/manifest", nil)
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.JSONEq(`{"status": "processing", "datasets": []}`, string(data))

		resp = ts.request(http.MethodGet, "/api/v1/datastores/"+ds.Id+"/datasets", nil)
		data, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.JSONEq(`[]`, string(data))
	}
}

func TestRegistrationConflictsAndUnreachablePaths(t *testing.T) {
	assert := assert.New(t)
	ts := newTestService(t, "", 0)
	root := hazardsShare(t)

	resp := ts.register("hazards", root)
	assert.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.register("hazards", root)
	assert.Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = ts.register("missing", filepath.Join(root, "no-such-folder"))
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = ts.register("metastore", "hive://metastore:9083/default")
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = ts.register("bad/name", root)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// names are taken as given, so surrounding whitespace is refused
	resp = ts.register(" hazards2 ", root)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// nothing but the first registration was stored
	resp = ts.request(http.MethodGet, "/api/v1/datastores", nil)
	var all []DatastoreResponse
	decode(t, resp, &all)
	assert.Equal(1, len(all))
}

func TestFailedSampling(t *testing.T) {
	assert := assert.New(t)
	ts := newTestService(t, "", 0)
	root := t.TempDir()
	err := bdfstest.WriteShare(root, map[string][]byte{
		"broken/data.csv": []byte("id,id\n1,2\n"),
	})
	assert.Nil(err)

	resp := ts.register("broken", root)
	var ds DatastoreResponse
	decode(t, resp, &ds)
	m := ts.waitForManifest(t, ds.Id)
	assert.Equal(manifest.StatusFailed, m.Status)
	assert.Contains(m.Message, "'id' appears at both 0 and 1")
	assert.NotNil(m.Datasets)
}

func TestDeleteAndRefresh(t *testing.T) {
	assert := assert.New(t)
	ts := newTestService(t, "", 0)
	root := hazardsShare(t)

	resp := ts.register("hazards", root)
	var ds DatastoreResponse
	decode(t, resp, &ds)
	ts.waitForManifest(t, ds.Id)

	// add a dataset and re-sample
	err := bdfstest.WriteShare(root, map[string][]byte{
		"wildfires/perimeters.csv": []byte("fire_id,acres\n1,1200\n"),
	})
	assert.Nil(err)
	resp = ts.request(http.MethodPost, "/api/v1/datastores/"+ds.Id+"/refresh", nil)
	assert.Equal(http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()
	m := ts.waitForManifest(t, ds.Id)
	assert.Equal(4, len(m.Datasets))

	resp = ts.request(http.MethodDelete, "/api/v1/datastores/"+ds.Id, nil)
	assert.Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = ts.request(http.MethodGet, "/api/v1/datastores/"+ds.Id, nil)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = ts.request(http.MethodDelete, "/api/v1/datastores/"+ds.Id, nil)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = ts.request(http.MethodGet, "/api/v1/datastores/not-a-uuid/manifest", nil)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRegistryPersists(t *testing.T) {
	assert := assert.New(t)
	dataDir := t.TempDir()
	ts := newTestService(t, dataDir, 0)
	resp := ts.register("hazards", hazardsShare(t))
	var ds DatastoreResponse
	decode(t, resp, &ds)
	ts.waitForManifest(t, ds.Id)
	ts.HTTP.Close()
	ts.Service.Close()
	assert.FileExists(filepath.Join(dataDir, "datastores.db"))

	ts = newTestService(t, dataDir, 0)
	resp = ts.request(http.MethodGet, "/api/v1/datastores/"+ds.Id+"/manifest", nil)
	var m manifest.Manifest
	decode(t, resp, &m)
	assert.Equal(manifest.StatusReady, m.Status)
	assert.Equal(3, len(m.Datasets))
}

func TestSamplingResumesAfterRestart(t *testing.T) {
	assert := assert.New(t)
	dataDir := t.TempDir()
	ts := newTestService(t, dataDir, 3600)
	resp := ts.register("hazards", hazardsShare(t))
	var ds DatastoreResponse
	decode(t, resp, &ds)
	assert.Equal(manifest.StatusProcessing, ds.Status)

	// stop the service while its worker is still busy with the share
	ts.HTTP.Close()
	ts.Service.Close()

	ts = newTestService(t, dataDir, 0)
	m := ts.waitForManifest(t, ds.Id)
	assert.Equal(manifest.StatusReady, m.Status)
	assert.Equal([]string{"earthquakes", "hurricanes", "observations"}, m.DatasetNames())
}

func TestAuthenticator(t *testing.T) {
	assert := assert.New(t)
	a, err := newAuthenticator("", map[string]string{"analyst": "s3cr3t"}, time.Minute)
	assert.Nil(err)

	_, _, err = a.IssueToken("nobody", "s3cr3t")
	assert.NotNil(err)

	token, expires, err := a.IssueToken("analyst", "s3cr3t")
	assert.Nil(err)
	assert.True(expires.After(time.Now()))

	user, err := a.Authorize("Bearer " + token)
	assert.Nil(err)
	assert.Equal("analyst", user)

	_, err = a.Authorize(token)
	assert.NotNil(err)

	// tokens minted with another key are rejected
	other, err := newAuthenticator("", map[string]string{"analyst": "s3cr3t"}, time.Minute)
	assert.Nil(err)
	_, err = other.User(token)
	assert.NotNil(err)
}

func TestMain(m *testing.M) {
	if os.Getenv("BDFS_DEBUG") != "" {
		bdfstest.EnableDebugLogging()
	}
	os.Exit(m.Run())
}
