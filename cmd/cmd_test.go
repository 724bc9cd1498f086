package cmd

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kbase/bdfs/bdfstest"
	"github.com/kbase/bdfs/config"
	"github.com/kbase/bdfs/manifest"
	"github.com/kbase/bdfs/server"
)

// a configuration used both by the in-process service and by the commands
// under test (the portal URL is known only once the service is running)
const cliConfig string = `
portal:
  url: ${BDFS_TEST_PORTAL}
  username: analyst
  password: s3cr3t
manifests:
  poll_interval: 0.05
  max_wait: 10
  cache: ${BDFS_TEST_CACHE}
service:
  users:
    analyst: s3cr3t
`

// writes the configuration file, starts a service, and returns the
// configuration file's path
func setup(t *testing.T) string {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "bdfs.yaml")
	assert.Nil(t, os.WriteFile(configFile, []byte(cliConfig), 0644))

	t.Setenv("BDFS_TEST_PORTAL", "")
	t.Setenv("BDFS_TEST_CACHE", filepath.Join(dir, "manifests.db"))
	assert.Nil(t, config.InitFromFile(configFile))
	service, err := server.New()
	assert.Nil(t, err)
	ts := httptest.NewServer(service.Handler())
	t.Cleanup(func() {
		ts.Close()
		service.Close()
	})
	t.Setenv("BDFS_TEST_PORTAL", ts.URL)
	return configFile
}

// runs bdfs with the given arguments, returning its output
func run(t *testing.T, configFile string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(&stdout, &stderr)
	rc.SetArgs(append([]string{"--config", configFile}, args...))
	err := rc.Execute()
	return stdout.String(), err
}

func TestInfoCommand(t *testing.T) {
	assert := assert.New(t)
	configFile := setup(t)
	out, err := run(t, configFile, "info")
	assert.Nil(err)
	assert.Contains(out, "BDFS admin")
	assert.Contains(out, "bigDataFileShares")
}

func TestWorkflowCommands(t *testing.T) {
	assert := assert.New(t)
	configFile := setup(t)
	root := t.TempDir()
	assert.Nil(bdfstest.WriteShare(root, bdfstest.NaturalHazardsShare()))

	out, err := run(t, configFile, "search")
	assert.Nil(err)
	assert.Contains(out, "No big data file shares are registered.")

	out, err = run(t, configFile, "register", "hazards", root)
	assert.Nil(err)
	assert.Contains(out, "/bigDataFileShares/hazards")

	_, err = run(t, configFile, "register", "hazards", root)
	assert.NotNil(err)

	out, err = run(t, configFile, "manifest", "hazards", "--wait")
	assert.Nil(err)
	var m manifest.Manifest
	assert.Nil(json.Unmarshal([]byte(out), &m))
	assert.True(m.Ready())
	assert.Equal([]string{"earthquakes", "hurricanes", "observations"}, m.DatasetNames())

	out, err = run(t, configFile, "search")
	assert.Nil(err)
	assert.Contains(out, "hazards")
	assert.Contains(out, "FileShare")

	out, err = run(t, configFile, "datasets", "hazards")
	assert.Nil(err)
	for _, name := range []string{"earthquakes", "hurricanes", "observations"} {
		assert.Contains(out, name)
	}
	assert.Contains(out, "polyline")

	out, err = run(t, configFile, "manifest", "hazards", "--datapackage")
	assert.Nil(err)
	var descriptor map[string]any
	assert.Nil(json.Unmarshal([]byte(out), &descriptor))
	assert.Equal("hazards", descriptor["name"])

	out, err = run(t, configFile, "get", "hazards")
	assert.Nil(err)
	assert.Contains(out, "ready")

	_, err = run(t, configFile, "refresh", "hazards")
	assert.Nil(err)

	out, err = run(t, configFile, "delete", "hazards")
	assert.Nil(err)
	assert.True(strings.Contains(out, "Deleted /bigDataFileShares/hazards"))

	_, err = run(t, configFile, "get", "hazards")
	assert.NotNil(err)
}

func TestCommandsRequireArguments(t *testing.T) {
	assert := assert.New(t)
	configFile := setup(t)
	_, err := run(t, configFile, "register", "hazards")
	assert.NotNil(err)
	_, err = run(t, configFile, "datasets")
	assert.NotNil(err)
}
