package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/agent"
	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/types"
)

type fakeSource struct {
	snap agent.Snapshot
}

func (f *fakeSource) Snapshot() agent.Snapshot { return f.snap }

func testServer(snap agent.Snapshot) *httptest.Server {
	router := mux.NewRouter()
	Mount(router, &fakeSource{snap: snap})
	return httptest.NewServer(router)
}

func get(t *testing.T, server *httptest.Server, path string, out interface{}) {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func testSnapshot() agent.Snapshot {
	return agent.Snapshot{
		AgentID:  "a1",
		State:    "registered",
		Master:   "10.0.0.1:5050",
		Endpoint: "10.0.0.2:5051",
		Info: types.AgentInfo{
			Hostname:  "node-1",
			Resources: resources.Resources{resources.Scalar("cpus", 4)},
		},
		Frameworks: []agent.FrameworkView{{
			ID:   "f1",
			Name: "analytics",
			Executors: []agent.ExecutorView{{
				ID:         "default",
				Registered: true,
				Launched:   2,
			}},
		}},
		Tasks: []types.Task{
			{
				TaskID:      "t1",
				FrameworkID: "f1",
				ExecutorID:  "default",
				State:       types.TaskRunning,
				Resources:   resources.Resources{resources.Scalar("cpus", 0.5), resources.Scalar("mem", 256)},
			},
			{TaskID: "t2", FrameworkID: "f1", State: types.TaskStarting},
		},
		PendingUpdates: 1,
		Stats: agent.Stats{
			StartTime:          time.Now().Add(-time.Minute),
			TasksStarted:       2,
			ValidStatusUpdates: 3,
		},
		Vars: map[string]string{"work_dir": "/var/lib/burrow"},
	}
}

func TestInfoEndpoint(t *testing.T) {
	server := testServer(testSnapshot())
	defer server.Close()

	var info InfoResponse
	get(t, server, "/info.json", &info)
	assert.Equal(t, "a1", info.AgentID)
	assert.Equal(t, "registered", info.State)
	assert.Equal(t, "10.0.0.1:5050", info.Master)
	assert.Equal(t, "node-1", info.Hostname)
	assert.Equal(t, "cpus:4", info.Resources)
}

func TestFrameworksEndpoint(t *testing.T) {
	server := testServer(testSnapshot())
	defer server.Close()

	var frameworks []agent.FrameworkView
	get(t, server, "/frameworks.json", &frameworks)
	require.Len(t, frameworks, 1)
	assert.Equal(t, "analytics", frameworks[0].Name)
	require.Len(t, frameworks[0].Executors, 1)
	assert.True(t, frameworks[0].Executors[0].Registered)
}

func TestTasksEndpoint(t *testing.T) {
	server := testServer(testSnapshot())
	defer server.Close()

	var tasks []TaskView
	get(t, server, "/tasks.json", &tasks)
	require.Len(t, tasks, 2)
	assert.Equal(t, types.TaskRunning, tasks[0].State)
	assert.Equal(t, types.ExecutorID("default"), tasks[0].ExecutorID)
	// Resource scalars come flattened, not as the raw vector.
	assert.Equal(t, 0.5, tasks[0].CPUs)
	assert.Equal(t, 256.0, tasks[0].Mem)
	assert.Equal(t, 0.0, tasks[1].CPUs)
}

func TestTasksEndpointEmpty(t *testing.T) {
	server := testServer(agent.Snapshot{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/tasks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	var tasks []TaskView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestStatsEndpoint(t *testing.T) {
	server := testServer(testSnapshot())
	defer server.Close()

	var stats StatsResponse
	get(t, server, "/stats.json", &stats)
	assert.Equal(t, 1, stats.Frameworks)
	assert.Equal(t, 2, stats.Tasks)
	assert.Equal(t, 1, stats.PendingUpdates)
	assert.Equal(t, int64(3), stats.Stats.ValidStatusUpdates)
	assert.Greater(t, stats.UptimeSeconds, 0.0)
}

func TestVarsEndpoint(t *testing.T) {
	server := testServer(testSnapshot())
	defer server.Close()

	resp, err := http.Get(server.URL + "/vars")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// One "key value" pair per line.
	vars := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		key, value, found := strings.Cut(line, " ")
		require.True(t, found, "malformed line %q", line)
		vars[key] = value
	}

	assert.Equal(t, "/var/lib/burrow", vars["work_dir"])
	assert.Equal(t, "node-1", vars["hostname"])
	assert.Equal(t, "a1", vars["agent_id"])
	assert.Equal(t, "2", vars["tasks_started"])
	assert.Equal(t, "3", vars["valid_status_updates"])
	assert.Equal(t, "0", vars["executors_exited"])

	uptime, err := strconv.ParseFloat(vars["uptime"], 64)
	require.NoError(t, err)
	assert.Greater(t, uptime, 0.0)
}

func TestMetricsEndpoint(t *testing.T) {
	server := testServer(testSnapshot())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostIsRejected(t *testing.T) {
	server := testServer(testSnapshot())
	defer server.Close()

	resp, err := http.Post(server.URL+"/info.json", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
