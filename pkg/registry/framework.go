package registry

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/updates"
)

// Framework tracks one tenant on this agent. It is created when the first
// task for the framework arrives and eligible for removal once it has no
// executors.
type Framework struct {
	ID   types.FrameworkID
	Info types.FrameworkInfo

	// SchedulerEndpoint is where framework messages for the scheduler
	// go. The master forwards a new value when the scheduler moves.
	SchedulerEndpoint string

	Executors map[types.ExecutorID]*Executor

	// Updates holds this framework's unacknowledged status updates.
	Updates *updates.Queue
}

func newFramework(id types.FrameworkID, info types.FrameworkInfo,
	schedulerEndpoint string, queue *updates.Queue) *Framework {
	return &Framework{
		ID:                id,
		Info:              info,
		SchedulerEndpoint: schedulerEndpoint,
		Executors:         make(map[types.ExecutorID]*Executor),
		Updates:           queue,
	}
}

// CreateExecutor adds a new executor record. The executor starts
// unregistered.
func (f *Framework) CreateExecutor(info types.ExecutorInfo, directory string) (*Executor, error) {
	if _, ok := f.Executors[info.ExecutorID]; ok {
		return nil, fmt.Errorf("executor %q already exists in framework %q", info.ExecutorID, f.ID)
	}
	executor := newExecutor(f.ID, info, directory)
	f.Executors[info.ExecutorID] = executor
	return executor, nil
}

// DestroyExecutor drops an executor record. Unknown ids are ignored.
func (f *Framework) DestroyExecutor(executorID types.ExecutorID) {
	delete(f.Executors, executorID)
}

// Executor returns the executor with the given id, or nil.
func (f *Framework) Executor(executorID types.ExecutorID) *Executor {
	return f.Executors[executorID]
}

// ExecutorForTask returns the executor holding the task, queued or
// launched, or nil.
func (f *Framework) ExecutorForTask(taskID types.TaskID) *Executor {
	for _, executor := range f.Executors {
		if executor.has(taskID) {
			return executor
		}
	}
	return nil
}
