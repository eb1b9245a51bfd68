package reaper

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
)

// Listener is notified of executor exits. Implementations must not block;
// the agent's listener hands the event to its own loop.
type Listener interface {
	ExecutorExited(frameworkID types.FrameworkID, executorID types.ExecutorID, status int)
}

// harvestInterval is how often exited children are collected.
const harvestInterval = time.Second

type watched struct {
	frameworkID types.FrameworkID
	executorID  types.ExecutorID
}

type watchRequest struct {
	watched
	pid int
}

// Reaper watches child pids and reports their exit statuses.
type Reaper struct {
	listener Listener
	interval time.Duration
	wait     func() (pid int, status int, ok bool)

	watchCh chan watchRequest
	stopCh  chan struct{}
	done    chan struct{}

	// Owned by the run loop.
	watching map[int]watched
	exited   map[int]int
}

// New creates a reaper. Start must be called before Watch.
func New(listener Listener) *Reaper {
	return &Reaper{
		listener: listener,
		interval: harvestInterval,
		wait:     sysWait,
		watchCh:  make(chan watchRequest),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		watching: make(map[int]watched),
		exited:   make(map[int]int),
	}
}

// Start launches the harvest loop.
func (r *Reaper) Start() {
	go r.run()
}

// Stop terminates the harvest loop.
func (r *Reaper) Stop() {
	close(r.stopCh)
}

// Done is closed when the harvest loop has terminated. A close that the
// caller did not request via Stop means exit tracking is gone and the
// caller should treat it as fatal.
func (r *Reaper) Done() <-chan struct{} {
	return r.done
}

// Watch registers interest in a pid on behalf of an executor. If the pid
// already exited, the exit notification is delivered immediately.
func (r *Reaper) Watch(frameworkID types.FrameworkID, executorID types.ExecutorID, pid int) {
	select {
	case r.watchCh <- watchRequest{watched{frameworkID, executorID}, pid}:
	case <-r.done:
	}
}

func (r *Reaper) run() {
	defer close(r.done)

	logger := log.WithComponent("reaper")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case req := <-r.watchCh:
			if status, ok := r.exited[req.pid]; ok {
				// Exited before the watch arrived.
				logger.Info().Int("pid", req.pid).
					Str("executor_id", string(req.executorID)).
					Msg("Watched process already exited")
				delete(r.exited, req.pid)
				r.listener.ExecutorExited(req.frameworkID, req.executorID, status)
			} else {
				logger.Info().Int("pid", req.pid).
					Str("executor_id", string(req.executorID)).
					Msg("Watching process")
				r.watching[req.pid] = req.watched
			}

		case <-ticker.C:
			r.harvest(logger)

		case <-r.stopCh:
			return
		}
	}
}

func (r *Reaper) harvest(logger zerolog.Logger) {
	for {
		pid, status, ok := r.wait()
		if !ok {
			return
		}
		if w, watchedPid := r.watching[pid]; watchedPid {
			logger.Info().Int("pid", pid).Int("status", status).
				Str("executor_id", string(w.executorID)).
				Msg("Reaped watched process")
			delete(r.watching, pid)
			r.listener.ExecutorExited(w.frameworkID, w.executorID, status)
		} else {
			logger.Info().Int("pid", pid).Int("status", status).
				Msg("Reaped unwatched process")
			r.exited[pid] = status
		}
	}
}

func sysWait() (int, int, bool) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
	if err != nil || pid <= 0 {
		return 0, 0, false
	}
	return pid, int(ws), true
}
