package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

// a manifest document as produced by the admin service for a share holding
// an earthquake catalog and a set of hurricane tracks
const readyManifestJSON string = `{
  "status": "ready",
  "datasets": [
    {
      "name": "earthquakes",
      "format": {
        "type": "delimited",
        "extension": "csv",
        "fieldDelimiter": ",",
        "quoteChar": "\"",
        "hasHeaderRow": true,
        "encoding": "UTF-8"
      },
      "schema": {
        "fields": [
          {"name": "event_id", "type": "bigInteger"},
          {"name": "longitude", "type": "double"},
          {"name": "latitude", "type": "double"},
          {"name": "magnitude", "type": "double"},
          {"name": "date", "type": "date"}
        ]
      },
      "geometry": {
        "geometryType": "point",
        "spatialReference": {"wkid": 4326},
        "fields": [
          {"name": "longitude", "formats": ["x"]},
          {"name": "latitude", "formats": ["y"]}
        ]
      },
      "time": {
        "timeType": "instant",
        "timeZone": "UTC",
        "fields": [{"name": "date", "formats": ["yyyy-MM-dd"]}]
      }
    },
    {
      "name": "hurricanes",
      "format": {"type": "shapefile", "extension": "shp"},
      "schema": {
        "fields": [
          {"name": "NAME", "type": "string"},
          {"name": "WIND", "type": "integer"}
        ]
      },
      "geometry": {
        "geometryType": "polyline",
        "spatialReference": {"wkid": 4326}
      }
    }
  ]
}`

func readyManifest(t *testing.T) Manifest {
	var m Manifest
	err := json.Unmarshal([]byte(readyManifestJSON), &m)
	assert.Nil(t, err)
	return m
}

func TestProcessingManifestShape(t *testing.T) {
	assert := assert.New(t)
	m := Processing()
	assert.False(m.Ready())
	assert.Equal(StatusProcessing, m.Status)
	assert.NotNil(m.Datasets)
	assert.Equal(0, len(m.Datasets))

	// the not-ready shape must serialize with an empty (not null) list
	data, err := json.Marshal(m)
	assert.Nil(err)
	assert.JSONEq(`{"status": "processing", "datasets": []}`, string(data))
}

func TestDecodeManifest(t *testing.T) {
	assert := assert.New(t)
	m := readyManifest(t)
	assert.True(m.Ready())
	assert.Equal([]string{"earthquakes", "hurricanes"}, m.DatasetNames())

	quakes, found := m.Dataset("earthquakes")
	assert.True(found)
	assert.Equal(FormatDelimited, quakes.Format.Type)
	assert.Equal(",", quakes.Format.Delimiter)
	assert.True(quakes.Format.HasHeaderRow)
	assert.Equal([]string{"event_id", "longitude", "latitude", "magnitude", "date"},
		quakes.Schema.FieldNames())
	assert.NotNil(quakes.Geometry)
	assert.Equal("point", quakes.Geometry.GeometryType)
	assert.Equal(4326, quakes.Geometry.SpatialReference.WKID)
	assert.NotNil(quakes.Time)
	assert.Equal(TimeInstant, quakes.Time.TimeType)
	assert.Equal("date", quakes.Time.Fields[0].Name)

	field, found := quakes.Schema.Field("MAGNITUDE")
	assert.True(found)
	assert.Equal(FieldTypeDouble, field.Type)
	_, found = quakes.Schema.Field("depth")
	assert.False(found)

	hurricanes, found := m.Dataset("hurricanes")
	assert.True(found)
	assert.Nil(hurricanes.Time)

	_, found = m.Dataset("volcanoes")
	assert.False(found)
}

func TestManifestRoundTripsThroughJSON(t *testing.T) {
	assert := assert.New(t)
	m := readyManifest(t)
	data, err := json.Marshal(m)
	assert.Nil(err)
	assert.JSONEq(readyManifestJSON, string(data))
}

func TestValidateAcceptsValidManifest(t *testing.T) {
	m := readyManifest(t)
	assert.Nil(t, m.Validate())
	assert.Nil(t, Processing().Validate())
}

func TestValidateRejectsDuplicateFields(t *testing.T) {
	assert := assert.New(t)
	m := readyManifest(t)
	m.Datasets[1].Schema.Fields = append(m.Datasets[1].Schema.Fields,
		Field{Name: "NAME", Type: FieldTypeString})
	err := m.Validate()
	assert.NotNil(err)
	assert.IsType(&DuplicateFieldError{}, err)
	assert.Equal("Field 'NAME' appears more than once in the schema for dataset 'hurricanes'",
		err.Error())
}

func TestValidateRejectsDuplicateDatasets(t *testing.T) {
	assert := assert.New(t)
	m := readyManifest(t)
	m.Datasets[1].Name = "earthquakes"
	err := m.Validate()
	assert.IsType(&DuplicateDatasetError{}, err)
	assert.Equal("Manifest contains more than one dataset named 'earthquakes'", err.Error())
}

func TestValidateRejectsUnnamedDatasets(t *testing.T) {
	assert := assert.New(t)
	m := readyManifest(t)
	m.Datasets[0].Name = ""
	err := m.Validate()
	assert.IsType(&UnnamedDatasetError{}, err)
	assert.Equal("Dataset 0 in manifest has no name", err.Error())
}

func TestDataPackage(t *testing.T) {
	assert := assert.New(t)
	m := readyManifest(t)
	pkg, err := m.DataPackage("Natural Hazards")
	assert.Nil(err)
	assert.NotNil(pkg)
	assert.Equal([]string{"earthquakes", "hurricanes"}, pkg.ResourceNames())

	descriptor := pkg.Descriptor()
	assert.Equal("natural-hazards", descriptor["name"])

	quakes := pkg.GetResource("earthquakes")
	assert.NotNil(quakes)
	resDesc := quakes.Descriptor()
	assert.Equal("csv", resDesc["format"])
	assert.Equal("text/csv", resDesc["mediatype"])
}

func TestDataPackageRejectsIncompleteManifests(t *testing.T) {
	assert := assert.New(t)
	_, err := Processing().DataPackage("pending")
	assert.IsType(&EmptyManifestError{}, err)
	assert.Equal("Manifest is not ready (status: processing)", err.Error())

	_, err = Manifest{Status: StatusReady, Datasets: []Dataset{}}.DataPackage("empty")
	assert.IsType(&EmptyManifestError{}, err)
	assert.Equal("Manifest contains no datasets", err.Error())
}
