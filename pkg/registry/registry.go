package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/updates"
)

// Registry owns every framework known to the agent.
type Registry struct {
	retryInterval time.Duration
	frameworks    map[types.FrameworkID]*Framework
}

// New creates an empty registry. retryInterval seeds each framework's
// status-update queue.
func New(retryInterval time.Duration) *Registry {
	return &Registry{
		retryInterval: retryInterval,
		frameworks:    make(map[types.FrameworkID]*Framework),
	}
}

// Framework returns the framework with the given id, or nil.
func (r *Registry) Framework(id types.FrameworkID) *Framework {
	return r.frameworks[id]
}

// CreateFramework adds a framework. Exactly one framework may exist per id.
func (r *Registry) CreateFramework(id types.FrameworkID, info types.FrameworkInfo,
	schedulerEndpoint string) (*Framework, error) {
	if _, ok := r.frameworks[id]; ok {
		return nil, fmt.Errorf("framework %q already exists", id)
	}
	framework := newFramework(id, info, schedulerEndpoint, updates.NewQueue(r.retryInterval))
	r.frameworks[id] = framework
	return framework, nil
}

// RemoveFramework drops the framework record. Unknown ids are ignored.
func (r *Registry) RemoveFramework(id types.FrameworkID) {
	delete(r.frameworks, id)
}

// Frameworks returns every framework ordered by id.
func (r *Registry) Frameworks() []*Framework {
	out := make([]*Framework, 0, len(r.frameworks))
	for _, framework := range r.frameworks {
		out = append(out, framework)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Size returns the number of frameworks.
func (r *Registry) Size() int {
	return len(r.frameworks)
}

// Tasks returns every launched task across all frameworks, ordered by
// framework, executor and task id.
func (r *Registry) Tasks() []types.Task {
	var out []types.Task
	for _, framework := range r.Frameworks() {
		for _, executorID := range sortedExecutorIDs(framework) {
			executor := framework.Executors[executorID]
			for _, taskID := range sortedTaskIDs(executor) {
				out = append(out, *executor.LaunchedTasks[taskID])
			}
		}
	}
	return out
}

func sortedExecutorIDs(f *Framework) []types.ExecutorID {
	ids := make([]types.ExecutorID, 0, len(f.Executors))
	for id := range f.Executors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedTaskIDs(e *Executor) []types.TaskID {
	ids := make([]types.TaskID, 0, len(e.LaunchedTasks))
	for id := range e.LaunchedTasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
