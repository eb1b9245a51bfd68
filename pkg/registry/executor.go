package registry

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

// Executor tracks one executor process of a framework. Until the process
// registers back, Endpoint is empty and assigned tasks wait in QueuedTasks;
// afterwards tasks live in LaunchedTasks and Resources carries their sum.
type Executor struct {
	ID          types.ExecutorID
	FrameworkID types.FrameworkID
	Info        types.ExecutorInfo
	Directory   string

	// Endpoint is empty until the executor registers and immutable
	// afterwards.
	Endpoint transport.Endpoint

	// Resources is the sum of the resources of every launched task.
	Resources resources.Resources

	QueuedTasks   map[types.TaskID]types.TaskDescription
	LaunchedTasks map[types.TaskID]*types.Task
}

func newExecutor(frameworkID types.FrameworkID, info types.ExecutorInfo, directory string) *Executor {
	return &Executor{
		ID:            info.ExecutorID,
		FrameworkID:   frameworkID,
		Info:          info,
		Directory:     directory,
		QueuedTasks:   make(map[types.TaskID]types.TaskDescription),
		LaunchedTasks: make(map[types.TaskID]*types.Task),
	}
}

// Registered reports whether the executor process has registered back.
func (e *Executor) Registered() bool {
	return e.Endpoint != ""
}

// Register records the executor's runtime endpoint. The endpoint is
// set-once.
func (e *Executor) Register(endpoint transport.Endpoint) error {
	if e.Registered() {
		return fmt.Errorf("executor %q is already registered at %s", e.ID, e.Endpoint)
	}
	if endpoint == "" {
		return fmt.Errorf("executor %q registering with empty endpoint", e.ID)
	}
	e.Endpoint = endpoint
	return nil
}

// Queue holds a task until the executor registers. A task id may live in
// the queued or the launched map, never both.
func (e *Executor) Queue(task types.TaskDescription) error {
	if e.has(task.TaskID) {
		return fmt.Errorf("task %q already assigned to executor %q", task.TaskID, e.ID)
	}
	e.QueuedTasks[task.TaskID] = task
	return nil
}

// AddTask moves a task into the launched set, transitions it to starting
// and charges its resources to the executor.
func (e *Executor) AddTask(task types.TaskDescription) (*types.Task, error) {
	if _, ok := e.LaunchedTasks[task.TaskID]; ok {
		return nil, fmt.Errorf("task %q already launched on executor %q", task.TaskID, e.ID)
	}
	delete(e.QueuedTasks, task.TaskID)

	t := &types.Task{
		TaskID:      task.TaskID,
		Name:        task.Name,
		FrameworkID: e.FrameworkID,
		ExecutorID:  e.ID,
		AgentID:     task.AgentID,
		Resources:   task.Resources,
		State:       types.TaskStarting,
	}
	e.LaunchedTasks[task.TaskID] = t
	e.Resources = e.Resources.Add(task.Resources)
	return t, nil
}

// RemoveTask drops a task from whichever set holds it, crediting launched
// resources back to the executor.
func (e *Executor) RemoveTask(taskID types.TaskID) {
	delete(e.QueuedTasks, taskID)
	if task, ok := e.LaunchedTasks[taskID]; ok {
		e.Resources = e.Resources.Subtract(task.Resources)
		delete(e.LaunchedTasks, taskID)
	}
}

// UpdateTaskState sets the state of a launched task. Unknown tasks are
// ignored.
func (e *Executor) UpdateTaskState(taskID types.TaskID, state types.TaskState) {
	if task, ok := e.LaunchedTasks[taskID]; ok {
		task.State = state
	}
}

func (e *Executor) has(taskID types.TaskID) bool {
	if _, ok := e.QueuedTasks[taskID]; ok {
		return true
	}
	_, ok := e.LaunchedTasks[taskID]
	return ok
}
