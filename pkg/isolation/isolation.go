package isolation

import (
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

// Module launches and confines executor processes on behalf of the agent.
type Module interface {
	// Initialize is called once before any launch. agent is the
	// endpoint executors should register back to; local marks
	// single-process test deployments.
	Initialize(agent transport.Endpoint, cfg *config.Config, local bool) error

	// LaunchExecutor starts the executor described by executorInfo in
	// the given working directory and returns its pid. A pid of 0 means
	// the module manages the executor's lifecycle and the caller must
	// not reap it.
	LaunchExecutor(frameworkID types.FrameworkID, frameworkInfo types.FrameworkInfo,
		executorInfo types.ExecutorInfo, directory string) (int, error)

	// ResourcesChanged advises the module of an executor's new
	// aggregate task resource vector so it can adjust caps.
	ResourcesChanged(frameworkID types.FrameworkID, frameworkInfo types.FrameworkInfo,
		executorInfo types.ExecutorInfo, res resources.Resources)

	// KillExecutor requests termination. The resulting exit is observed
	// through the reaper, not returned here.
	KillExecutor(frameworkID types.FrameworkID, frameworkInfo types.FrameworkInfo,
		executorInfo types.ExecutorInfo)
}
