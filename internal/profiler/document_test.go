package profiler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/buildtime-profiler/pkg/models"
)

func TestDocumentLayout(t *testing.T) {
	p := newTestProfiler()
	scenario(p)
	tr := &models.Transfer{Coordinate: "junit:junit:4.13.2:jar", Repository: "central", Size: 2048}
	p.OnEvent(models.Event{Type: models.EventArtifactDownloading, Timestamp: at(100), Transfer: tr})
	p.OnEvent(models.Event{Type: models.EventArtifactDownloaded, Timestamp: at(140), Transfer: tr})

	doc, err := p.Document()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"discovery-time", "session-time", "build", "goals", "install", "download",
		"deploy", "metadata", "fork-time", "fork-project",
	}, doc.Keys())

	v, ok := doc.Lookup("build.phases")
	require.True(t, ok)
	assert.Equal(t, []string{"compile", "test"}, v)

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded struct {
		Discovery int64 `json:"discovery-time"`
		Build     struct {
			Time     int64 `json:"time"`
			Projects []struct {
				Project string           `json:"project"`
				Name    string           `json:"name"`
				Phases  map[string]int64 `json:"phases"`
				Time    int64            `json:"time"`
			} `json:"projects"`
			Plugins map[string][]struct {
				Plugin string `json:"plugin"`
				Time   int64  `json:"time"`
			} `json:"plugins"`
		} `json:"build"`
		Download struct {
			Artifacts []struct {
				Artifact string `json:"artifact"`
				Time     int64  `json:"time"`
				Size     int64  `json:"size"`
			} `json:"artifacts"`
			Time int64 `json:"time"`
			Size int64 `json:"size"`
		} `json:"download"`
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.EqualValues(t, 15, decoded.Discovery)
	assert.EqualValues(t, 470, decoded.Build.Time)
	require.Len(t, decoded.Build.Projects, 2)
	assert.Equal(t, "com.example:a:1.0", decoded.Build.Projects[0].Project)
	assert.Equal(t, map[string]int64{"compile": 120, "test": 300}, decoded.Build.Projects[0].Phases)
	assert.EqualValues(t, 440, decoded.Build.Projects[0].Time)
	assert.Len(t, decoded.Build.Plugins["compile"], 2)

	require.Len(t, decoded.Download.Artifacts, 1)
	assert.Equal(t, "junit:junit:4.13.2:jar (central)", decoded.Download.Artifacts[0].Artifact)
	assert.EqualValues(t, 40, decoded.Download.Time)
	assert.EqualValues(t, 2048, decoded.Download.Size)

	assert.Contains(t, decoded.Metadata, "deployment")
}

func TestTelemetryPrunesIgnoredFields(t *testing.T) {
	p := newTestProfiler()
	a, _ := scenario(p)
	a.Parent = &models.Module{GroupID: "com.example", ArtifactID: "parent", Version: "3"}

	system := map[string]interface{}{"os": map[string]string{"name": "linux"}}
	payload, err := p.Telemetry(DefaultIgnoreFields, system, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "profiling", "project", "system", "date"}, payload.Keys())
	assert.Equal(t, epoch.UnixMilli(), mustGet(t, payload, "date"))

	for _, pruned := range DefaultIgnoreFields {
		_, ok := payload.Lookup("profiling." + pruned)
		assert.False(t, ok, "%s should be pruned", pruned)
	}
	_, ok := payload.Lookup("profiling.build.phases")
	assert.True(t, ok)
	assert.Equal(t, "parent", mustGet(t, payload, "project.parent.artifactId"))

	// the full document is untouched
	doc, err := p.Document()
	require.NoError(t, err)
	_, ok = doc.Lookup("build.plugins")
	assert.True(t, ok)
}

func TestSpanRecords(t *testing.T) {
	p := newTestProfiler()
	scenario(p)

	records := p.SpanRecords()
	require.NotEmpty(t, records)
	assert.Equal(t, "session", records[0].Name)
	assert.Equal(t, -1, records[0].Parent)
	assert.Equal(t, 455*time.Millisecond, records[0].End.Sub(records[0].Start))

	var goals int
	for i, rec := range records[1:] {
		assert.Less(t, rec.Parent, i+1, "parent of %s must precede it", rec.Name)
		if rec.Attributes["goal"] != "" {
			goals++
			parent := records[rec.Parent]
			assert.Equal(t, rec.Attributes["module"], parent.Attributes["module"])
		}
	}
	assert.Equal(t, 3, goals)
}

func TestSpanRecordsWithoutSession(t *testing.T) {
	p := newTestProfiler()
	runGoal(p, module("a"), goal("x", "y", "compile"), 0, 10)
	assert.Nil(t, p.SpanRecords())
}

func mustGet(t *testing.T, doc interface {
	Lookup(string) (interface{}, bool)
}, path string) interface{} {
	t.Helper()
	v, ok := doc.Lookup(path)
	require.True(t, ok, "missing %s", path)
	return v
}
