package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/cuemby/burrow/pkg/agent"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
)

// Source yields the agent state the endpoints serve. Satisfied by
// *agent.Agent.
type Source interface {
	Snapshot() agent.Snapshot
}

// Server serves the agent's read-only introspection endpoints.
type Server struct {
	source Source
}

// Mount registers the introspection endpoints on a router, typically the
// transport node's so everything shares one port.
func Mount(router *mux.Router, source Source) *Server {
	s := &Server{source: source}

	router.HandleFunc("/info.json", s.infoHandler).Methods(http.MethodGet)
	router.HandleFunc("/frameworks.json", s.frameworksHandler).Methods(http.MethodGet)
	router.HandleFunc("/tasks.json", s.tasksHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats.json", s.statsHandler).Methods(http.MethodGet)
	router.HandleFunc("/vars", s.varsHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return s
}

// InfoResponse is the /info.json document.
type InfoResponse struct {
	AgentID   string    `json:"agent_id"`
	State     string    `json:"state"`
	Master    string    `json:"master"`
	Endpoint  string    `json:"endpoint"`
	Hostname  string    `json:"hostname"`
	Resources string    `json:"resources"`
	Timestamp time.Time `json:"timestamp"`
}

// StatsResponse is the /stats.json document.
type StatsResponse struct {
	UptimeSeconds  float64     `json:"uptime_seconds"`
	Frameworks     int         `json:"frameworks"`
	Tasks          int         `json:"tasks"`
	PendingUpdates int         `json:"pending_updates"`
	Stats          agent.Stats `json:"stats"`
}

func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	writeJSON(w, InfoResponse{
		AgentID:   string(snap.AgentID),
		State:     snap.State,
		Master:    snap.Master,
		Endpoint:  snap.Endpoint,
		Hostname:  snap.Info.Hostname,
		Resources: snap.Info.Resources.String(),
		Timestamp: time.Now(),
	})
}

func (s *Server) frameworksHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	if snap.Frameworks == nil {
		snap.Frameworks = []agent.FrameworkView{}
	}
	writeJSON(w, snap.Frameworks)
}

// TaskView is one /tasks.json row. The cpus and mem scalars are flattened
// out of the resource vector so dashboards need not parse it.
type TaskView struct {
	TaskID      types.TaskID      `json:"task_id"`
	Name        string            `json:"name"`
	FrameworkID types.FrameworkID `json:"framework_id"`
	ExecutorID  types.ExecutorID  `json:"executor_id"`
	State       types.TaskState   `json:"state"`
	CPUs        float64           `json:"cpus"`
	Mem         float64           `json:"mem"`
}

func (s *Server) tasksHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	views := make([]TaskView, 0, len(snap.Tasks))
	for _, task := range snap.Tasks {
		views = append(views, TaskView{
			TaskID:      task.TaskID,
			Name:        task.Name,
			FrameworkID: task.FrameworkID,
			ExecutorID:  task.ExecutorID,
			State:       task.State,
			CPUs:        task.Resources.GetScalar("cpus", 0),
			Mem:         task.Resources.GetScalar("mem", 0),
		})
	}
	writeJSON(w, views)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	writeJSON(w, StatsResponse{
		UptimeSeconds:  time.Since(snap.Stats.StartTime).Seconds(),
		Frameworks:     len(snap.Frameworks),
		Tasks:          len(snap.Tasks),
		PendingUpdates: snap.PendingUpdates,
		Stats:          snap.Stats,
	})
}

// varsHandler serves the configuration and the lifetime counters as plain
// "key value" lines, one per variable.
func (s *Server) varsHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()

	keys := make([]string, 0, len(snap.Vars))
	for key := range snap.Vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s %s\n", key, snap.Vars[key])
	}
	fmt.Fprintf(&b, "hostname %s\n", snap.Info.Hostname)
	fmt.Fprintf(&b, "agent_id %s\n", snap.AgentID)
	fmt.Fprintf(&b, "uptime %.2f\n", time.Since(snap.Stats.StartTime).Seconds())
	for _, counter := range []struct {
		name  string
		value int64
	}{
		{"registrations", snap.Stats.Registrations},
		{"tasks_started", snap.Stats.TasksStarted},
		{"tasks_finished", snap.Stats.TasksFinished},
		{"tasks_failed", snap.Stats.TasksFailed},
		{"tasks_killed", snap.Stats.TasksKilled},
		{"tasks_lost", snap.Stats.TasksLost},
		{"valid_status_updates", snap.Stats.ValidStatusUpdates},
		{"invalid_status_updates", snap.Stats.InvalidStatusUpdates},
		{"status_update_retries", snap.Stats.StatusUpdateRetries},
		{"valid_framework_messages", snap.Stats.ValidFrameworkMessages},
		{"invalid_framework_messages", snap.Stats.InvalidFrameworkMessages},
		{"executors_exited", snap.Stats.ExecutorsExited},
	} {
		fmt.Fprintf(&b, "%s %d\n", counter.name, counter.value)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
