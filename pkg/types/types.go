package types

import (
	"time"

	"github.com/cuemby/burrow/pkg/resources"
)

// AgentID identifies an agent. It is empty until the master assigns one
// during registration.
type AgentID string

// FrameworkID identifies a framework (a tenant scheduler using the cluster).
type FrameworkID string

// ExecutorID identifies an executor within its framework.
type ExecutorID string

// TaskID identifies a task within its framework.
type TaskID string

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStarting TaskState = "starting"
	TaskRunning  TaskState = "running"
	TaskFinished TaskState = "finished"
	TaskFailed   TaskState = "failed"
	TaskKilled   TaskState = "killed"
	TaskLost     TaskState = "lost"
)

// Terminal reports whether no further updates are expected for a task in
// this state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskFinished, TaskFailed, TaskKilled, TaskLost:
		return true
	}
	return false
}

// AgentInfo describes an agent to the master. Immutable after startup.
type AgentInfo struct {
	Hostname       string              `json:"hostname"`
	PublicHostname string              `json:"public_hostname"`
	Resources      resources.Resources `json:"resources"`
	Attributes     string              `json:"attributes,omitempty"`
}

// FrameworkInfo describes a framework: its name, the user tasks run as, and
// the default executor used for tasks without an embedded executor spec.
type FrameworkInfo struct {
	Name     string       `json:"name"`
	User     string       `json:"user"`
	Executor ExecutorInfo `json:"executor"`
}

// ExecutorInfo describes an executor binary: where to fetch it, the
// resources the executor itself consumes, and opaque framework data handed
// to the executor at registration.
type ExecutorInfo struct {
	ExecutorID ExecutorID          `json:"executor_id"`
	URI        string              `json:"uri"`
	Resources  resources.Resources `json:"resources,omitempty"`
	Data       []byte              `json:"data,omitempty"`
}

// TaskDescription is a task as assigned by the master. Executor is non-nil
// when the task embeds its own executor spec instead of using the
// framework's default.
type TaskDescription struct {
	TaskID    TaskID              `json:"task_id"`
	Name      string              `json:"name"`
	AgentID   AgentID             `json:"agent_id"`
	Resources resources.Resources `json:"resources"`
	Executor  *ExecutorInfo       `json:"executor,omitempty"`
	Data      []byte              `json:"data,omitempty"`
}

// Task is a launched task tracked by the agent.
type Task struct {
	TaskID      TaskID              `json:"task_id"`
	Name        string              `json:"name"`
	FrameworkID FrameworkID         `json:"framework_id"`
	ExecutorID  ExecutorID          `json:"executor_id"`
	AgentID     AgentID             `json:"agent_id"`
	Resources   resources.Resources `json:"resources"`
	State       TaskState           `json:"state"`
}

// TaskStatus reports a task's state transition, with an opaque message from
// the executor.
type TaskStatus struct {
	TaskID  TaskID    `json:"task_id"`
	State   TaskState `json:"state"`
	Message []byte    `json:"message,omitempty"`
}

// StatusUpdate wraps a TaskStatus for reliable delivery to the master.
// Sequence is used by the checkpointed update journal; the in-memory retry
// path keys on deadlines instead.
type StatusUpdate struct {
	FrameworkID FrameworkID `json:"framework_id"`
	AgentID     AgentID     `json:"agent_id"`
	ExecutorID  ExecutorID  `json:"executor_id,omitempty"`
	Status      TaskStatus  `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	Sequence    int64       `json:"sequence"`
}
