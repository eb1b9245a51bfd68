package isolation

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

// Environment handed to launched executors.
const (
	EnvAgentEndpoint = "BURROW_AGENT_ENDPOINT"
	EnvFrameworkID   = "BURROW_FRAMEWORK_ID"
	EnvExecutorID    = "BURROW_EXECUTOR_ID"
	EnvWorkDir       = "BURROW_WORK_DIR"
)

type executorKey struct {
	frameworkID types.FrameworkID
	executorID  types.ExecutorID
}

// ProcessModule launches executors as plain child processes. It provides no
// resource confinement; ResourcesChanged is advisory only.
type ProcessModule struct {
	agent transport.Endpoint
	cfg   *config.Config
	local bool

	mu   sync.Mutex
	pids map[executorKey]int
}

// NewProcessModule returns an uninitialized process module.
func NewProcessModule() *ProcessModule {
	return &ProcessModule{pids: make(map[executorKey]int)}
}

func (m *ProcessModule) Initialize(agent transport.Endpoint, cfg *config.Config, local bool) error {
	m.agent = agent
	m.cfg = cfg
	m.local = local
	return nil
}

func (m *ProcessModule) LaunchExecutor(frameworkID types.FrameworkID,
	frameworkInfo types.FrameworkInfo, executorInfo types.ExecutorInfo,
	directory string) (int, error) {

	binary, err := m.resolveURI(executorInfo.URI)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		return 0, fmt.Errorf("failed to create work directory: %w", err)
	}

	cmd := exec.Command(binary)
	cmd.Dir = directory
	cmd.Env = append(os.Environ(),
		EnvAgentEndpoint+"="+string(m.agent),
		EnvFrameworkID+"="+string(frameworkID),
		EnvExecutorID+"="+string(executorInfo.ExecutorID),
		EnvWorkDir+"="+directory,
	)
	if m.cfg != nil && m.cfg.HadoopHome != "" {
		cmd.Env = append(cmd.Env, "HADOOP_HOME="+m.cfg.HadoopHome)
	}

	// Executors get their own process group so KillExecutor can take the
	// whole tree down.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if m.cfg != nil && m.cfg.SwitchUser && frameworkInfo.User != "" {
		cred, err := credentialFor(frameworkInfo.User)
		if err != nil {
			return 0, fmt.Errorf("failed to switch to user %q: %w", frameworkInfo.User, err)
		}
		cmd.SysProcAttr.Credential = cred
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to launch executor %q: %w", executorInfo.ExecutorID, err)
	}

	pid := cmd.Process.Pid
	// The reaper collects the exit status; release our handle so os/exec
	// does not hold the process.
	cmd.Process.Release()

	m.mu.Lock()
	m.pids[executorKey{frameworkID, executorInfo.ExecutorID}] = pid
	m.mu.Unlock()

	logger := log.WithComponent("isolation")
	logger.Info().
		Str("framework_id", string(frameworkID)).
		Str("executor_id", string(executorInfo.ExecutorID)).
		Str("binary", binary).Int("pid", pid).
		Msg("Launched executor")

	return pid, nil
}

func (m *ProcessModule) ResourcesChanged(frameworkID types.FrameworkID,
	frameworkInfo types.FrameworkInfo, executorInfo types.ExecutorInfo,
	res resources.Resources) {

	// No enforcement for plain processes.
	logger := log.WithComponent("isolation")
	logger.Debug().
		Str("framework_id", string(frameworkID)).
		Str("executor_id", string(executorInfo.ExecutorID)).
		Str("resources", res.String()).
		Msg("Executor resources changed")
}

func (m *ProcessModule) KillExecutor(frameworkID types.FrameworkID,
	frameworkInfo types.FrameworkInfo, executorInfo types.ExecutorInfo) {

	key := executorKey{frameworkID, executorInfo.ExecutorID}
	logger := log.WithComponent("isolation")

	m.mu.Lock()
	pid, ok := m.pids[key]
	delete(m.pids, key)
	m.mu.Unlock()

	if !ok {
		logger.Warn().
			Str("executor_id", string(executorInfo.ExecutorID)).
			Msg("Asked to kill unknown executor")
		return
	}

	// Negative pid addresses the process group.
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		logger.Warn().Err(err).
			Int("pid", pid).Msg("Failed to kill executor process group")
	}
}

// resolveURI turns an executor URI into an executable path. Relative paths
// are resolved against frameworks_home.
func (m *ProcessModule) resolveURI(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("executor has no binary URI")
	}
	if filepath.IsAbs(uri) {
		return uri, nil
	}
	if m.cfg != nil && m.cfg.FrameworksHome != "" {
		return filepath.Join(m.cfg.FrameworksHome, uri), nil
	}
	return uri, nil
}

func credentialFor(username string) (*syscall.Credential, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gid %q: %w", u.Gid, err)
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}
