package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordedBuild = `{"type":"discovery_started","timestamp":"2024-03-01T08:59:59.990Z"}
{"type":"session_started","timestamp":"2024-03-01T09:00:00Z","project":{"group_id":"com.example","artifact_id":"app","version":"1.0"}}
{"type":"module_started","timestamp":"2024-03-01T09:00:00.010Z","module":{"group_id":"com.example","artifact_id":"app","version":"1.0","name":"App"}}
{"type":"goal_started","timestamp":"2024-03-01T09:00:00.020Z","module":{"group_id":"com.example","artifact_id":"app","version":"1.0"},"goal":{"group_id":"org.apache.maven.plugins","artifact_id":"maven-compiler-plugin","version":"3.11.0","goal":"compile","phase":"compile"}}
{"type":"goal_succeeded","timestamp":"2024-03-01T09:00:00.140Z","module":{"group_id":"com.example","artifact_id":"app","version":"1.0"},"goal":{"group_id":"org.apache.maven.plugins","artifact_id":"maven-compiler-plugin","version":"3.11.0","goal":"compile","phase":"compile"}}
{"type":"module_succeeded","timestamp":"2024-03-01T09:00:00.150Z","module":{"group_id":"com.example","artifact_id":"app","version":"1.0","name":"App"}}
{"type":"session_ended","timestamp":"2024-03-01T09:00:00.200Z"}
`

func replay(t *testing.T, args ...string) string {
	t.Helper()
	out, err := replayLog(t, recordedBuild, args...)
	require.NoError(t, err)
	return out
}

func replayLog(t *testing.T, content string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "build.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"replay", path, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReplayText(t *testing.T) {
	out := replay(t, "--format", "text")

	assert.Contains(t, out, "Build Time Profiler Summary")
	assert.Contains(t, out, "Project discovery time: 10 ms")
	assert.Contains(t, out, "App:")
	assert.Contains(t, out, "     120 ms : compile")
}

func TestReplayTable(t *testing.T) {
	out := replay(t, "--format", "table")

	assert.Contains(t, out, "App")
	assert.Contains(t, out, "120 ms")
	assert.Contains(t, strings.ToUpper(out), "TOTAL")
}

func TestReplayJSONDocument(t *testing.T) {
	dir := t.TempDir()
	replay(t, "--format", "json", "--directory", dir)

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, 10, doc["discovery-time"])
	assert.Contains(t, doc, "build")
	assert.Contains(t, doc, "goals")
}

func TestReplaySkipsMalformedLines(t *testing.T) {
	lines := strings.SplitAfter(recordedBuild, "\n")
	corrupted := strings.Join(lines[:3], "") + "{\"type\":\"goal_started\",\n" + strings.Join(lines[3:], "")

	out, err := replayLog(t, corrupted, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Build Time Profiler Summary")
	assert.Contains(t, out, "     120 ms : compile")
}

func TestReplayFailsWhenNothingDecodes(t *testing.T) {
	_, err := replayLog(t, "not an event\n{also not\n", "--format", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed event log")
}

func TestCertCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	cert, key := filepath.Join(dir, "tls", "s.crt"), filepath.Join(dir, "tls", "s.key")

	rootCmd.SetArgs([]string{"cert", "--cert", cert, "--key", key, "--host", "10.0.0.5", "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())

	assert.FileExists(t, cert)
	assert.FileExists(t, key)
}
