package agent

import (
	"time"

	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/types"
)

// Stats are the agent's lifetime counters, served by /stats.json.
type Stats struct {
	StartTime time.Time `json:"start_time"`

	Registrations            int64 `json:"registrations"`
	TasksStarted             int64 `json:"tasks_started"`
	TasksFinished            int64 `json:"tasks_finished"`
	TasksFailed              int64 `json:"tasks_failed"`
	TasksKilled              int64 `json:"tasks_killed"`
	TasksLost                int64 `json:"tasks_lost"`
	ValidStatusUpdates       int64 `json:"valid_status_updates"`
	InvalidStatusUpdates     int64 `json:"invalid_status_updates"`
	StatusUpdateRetries      int64 `json:"status_update_retries"`
	ValidFrameworkMessages   int64 `json:"valid_framework_messages"`
	InvalidFrameworkMessages int64 `json:"invalid_framework_messages"`
	ExecutorsExited          int64 `json:"executors_exited"`
}

func (s *Stats) terminal(state types.TaskState) {
	switch state {
	case types.TaskFinished:
		s.TasksFinished++
	case types.TaskFailed:
		s.TasksFailed++
	case types.TaskKilled:
		s.TasksKilled++
	case types.TaskLost:
		s.TasksLost++
	}
}

// Snapshot is a point-in-time copy of the agent's state, safe to serialize
// outside the event loop.
type Snapshot struct {
	AgentID        types.AgentID     `json:"agent_id"`
	State          string            `json:"state"`
	Master         string            `json:"master"`
	Endpoint       string            `json:"endpoint"`
	Info           types.AgentInfo   `json:"info"`
	Frameworks     []FrameworkView   `json:"frameworks"`
	Tasks          []types.Task      `json:"tasks"`
	PendingUpdates int               `json:"pending_updates"`
	Stats          Stats             `json:"stats"`
	Vars           map[string]string `json:"vars"`
}

// FrameworkView is the introspection shape of one framework.
type FrameworkView struct {
	ID                types.FrameworkID `json:"framework_id"`
	Name              string            `json:"name"`
	User              string            `json:"user"`
	SchedulerEndpoint string            `json:"scheduler_endpoint"`
	PendingUpdates    int               `json:"pending_updates"`
	Executors         []ExecutorView    `json:"executors"`
}

// ExecutorView is the introspection shape of one executor.
type ExecutorView struct {
	ID         types.ExecutorID    `json:"executor_id"`
	URI        string              `json:"uri"`
	Directory  string              `json:"directory"`
	Endpoint   string              `json:"endpoint,omitempty"`
	Registered bool                `json:"registered"`
	Resources  resources.Resources `json:"resources"`
	Queued     int                 `json:"queued_tasks"`
	Launched   int                 `json:"launched_tasks"`
}

// snapshot runs on the event loop.
func (a *Agent) snapshot() Snapshot {
	stats := a.stats
	stats.StartTime = a.startTime

	snap := Snapshot{
		AgentID:        a.id,
		State:          a.state.String(),
		Master:         string(a.master),
		Endpoint:       string(a.transport.Addr()),
		Info:           a.info,
		Tasks:          a.registry.Tasks(),
		PendingUpdates: a.recovered.Pending(),
		Stats:          stats,
		Vars:           a.cfg.Map(),
	}

	for _, framework := range a.registry.Frameworks() {
		view := FrameworkView{
			ID:                framework.ID,
			Name:              framework.Info.Name,
			User:              framework.Info.User,
			SchedulerEndpoint: framework.SchedulerEndpoint,
			PendingUpdates:    framework.Updates.Pending(),
		}
		snap.PendingUpdates += framework.Updates.Pending()
		for _, executorID := range sortedExecutorIDs(framework) {
			executor := framework.Executor(executorID)
			view.Executors = append(view.Executors, ExecutorView{
				ID:         executor.ID,
				URI:        executor.Info.URI,
				Directory:  executor.Directory,
				Endpoint:   string(executor.Endpoint),
				Registered: executor.Registered(),
				Resources:  executor.Resources,
				Queued:     len(executor.QueuedTasks),
				Launched:   len(executor.LaunchedTasks),
			})
		}
		snap.Frameworks = append(snap.Frameworks, view)
	}
	return snap
}
