package isolation

import (
	"sync"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

// LaunchCall records one LaunchExecutor invocation on a Fake.
type LaunchCall struct {
	FrameworkID types.FrameworkID
	ExecutorID  types.ExecutorID
	Directory   string
}

// ResourcesCall records one ResourcesChanged invocation on a Fake.
type ResourcesCall struct {
	FrameworkID types.FrameworkID
	ExecutorID  types.ExecutorID
	Resources   resources.Resources
}

// KillCall records one KillExecutor invocation on a Fake.
type KillCall struct {
	FrameworkID types.FrameworkID
	ExecutorID  types.ExecutorID
}

// Fake is an in-memory Module for tests. NextPID is returned from every
// launch; zero means "do not reap" per the Module contract.
type Fake struct {
	NextPID   int
	LaunchErr error

	mu        sync.Mutex
	Launches  []LaunchCall
	Changes   []ResourcesCall
	Kills     []KillCall
	initAgent transport.Endpoint
}

func (f *Fake) Initialize(agent transport.Endpoint, cfg *config.Config, local bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initAgent = agent
	return nil
}

func (f *Fake) LaunchExecutor(frameworkID types.FrameworkID, frameworkInfo types.FrameworkInfo,
	executorInfo types.ExecutorInfo, directory string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LaunchErr != nil {
		return 0, f.LaunchErr
	}
	f.Launches = append(f.Launches, LaunchCall{frameworkID, executorInfo.ExecutorID, directory})
	return f.NextPID, nil
}

func (f *Fake) ResourcesChanged(frameworkID types.FrameworkID, frameworkInfo types.FrameworkInfo,
	executorInfo types.ExecutorInfo, res resources.Resources) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Changes = append(f.Changes, ResourcesCall{frameworkID, executorInfo.ExecutorID, res})
}

func (f *Fake) KillExecutor(frameworkID types.FrameworkID, frameworkInfo types.FrameworkInfo,
	executorInfo types.ExecutorInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Kills = append(f.Kills, KillCall{frameworkID, executorInfo.ExecutorID})
}

// LastChange returns the most recent ResourcesChanged call.
func (f *Fake) LastChange() (ResourcesCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Changes) == 0 {
		return ResourcesCall{}, false
	}
	return f.Changes[len(f.Changes)-1], true
}
