package agent

import (
	"sort"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/messages"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/registry"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

func (a *Agent) newMasterDetected(master transport.Endpoint) {
	logger := log.WithComponent("agent")
	logger.Info().Str("master", string(master)).Msg("New master detected")

	if a.master != "" && a.master != master {
		a.transport.Unlink(a.master)
	}
	a.master = master
	a.transport.Link(master)
	metrics.Registered.Set(0)
	a.publish(events.EventMasterChanged, "new master detected",
		map[string]string{"master": string(master)})

	if a.id == "" {
		a.state = stateRegistering
		a.transport.Send(master, messages.RegisterAgent{Agent: a.info})
		return
	}

	// Known id: re-introduce ourselves with the full launched-task set so
	// a failed-over master can rebuild its view.
	a.state = stateReregistering
	a.transport.Send(master, messages.ReregisterAgent{
		AgentID: a.id,
		Agent:   a.info,
		Tasks:   a.registry.Tasks(),
	})
}

// noMasterDetected clears the master endpoint but leaves the registration
// state alone: registration is with the cluster, not with a link, and the
// next elected master decides whether the agent is still known.
func (a *Agent) noMasterDetected() {
	logger := log.WithComponent("agent")
	logger.Warn().Msg("No master detected, waiting for election")
	if a.master != "" {
		a.transport.Unlink(a.master)
	}
	a.master = ""
	metrics.Registered.Set(0)
	a.publish(events.EventMasterLost, "no master detected", nil)
}

// registrationCompleted handles both AgentRegistered and AgentReregistered.
// The agent id is assigned exactly once; a master handing back a different
// id means the cluster no longer knows this agent and recovery is not
// possible in-process.
func (a *Agent) registrationCompleted(id types.AgentID, reregistration bool) {
	logger := log.WithComponent("agent")

	if a.id != "" && id != a.id {
		a.fatal("Master assigned agent id %q but this agent is %q", id, a.id)
		return
	}
	if a.state == stateRegistered && id == a.id {
		logger.Debug().Msg("Ignoring duplicate registration reply")
		return
	}
	if a.id == "" && reregistration {
		logger.Warn().Str("agent_id", string(id)).
			Msg("Reregistration reply without a prior registration")
	}

	a.id = id
	a.state = stateRegistered
	metrics.Registered.Set(1)
	metrics.Registrations.Inc()
	a.stats.Registrations++

	if reregistration {
		logger.Info().Str("agent_id", string(id)).Msg("Reregistered with master")
		a.publish(events.EventAgentReregistered, "reregistered with master",
			map[string]string{"agent_id": string(id)})
	} else {
		logger.Info().Str("agent_id", string(id)).Msg("Registered with master")
		a.publish(events.EventAgentRegistered, "registered with master",
			map[string]string{"agent_id": string(id)})
	}
}

func (a *Agent) runTask(m messages.RunTask) {
	logger := log.WithFramework(string(m.FrameworkID)).With().
		Str("task_id", string(m.Task.TaskID)).Logger()

	framework := a.registry.Framework(m.FrameworkID)
	if framework == nil {
		var err error
		framework, err = a.registry.CreateFramework(m.FrameworkID, m.Framework, m.SchedulerEndpoint)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create framework")
			return
		}
		logger.Info().Str("framework", m.Framework.Name).Msg("Adding framework")
		a.publish(events.EventFrameworkAdded, "framework added",
			map[string]string{"framework_id": string(m.FrameworkID)})
	} else if m.SchedulerEndpoint != "" && framework.SchedulerEndpoint != m.SchedulerEndpoint {
		framework.SchedulerEndpoint = m.SchedulerEndpoint
	}

	executorInfo := framework.Info.Executor
	if m.Task.Executor != nil {
		executorInfo = *m.Task.Executor
	}

	executor := framework.Executor(executorInfo.ExecutorID)
	switch {
	case executor == nil:
		a.launchExecutor(framework, executorInfo, m.Task)

	case !executor.Registered():
		if err := executor.Queue(m.Task); err != nil {
			logger.Warn().Err(err).Msg("Dropping duplicate task")
			return
		}
		logger.Info().Str("executor_id", string(executor.ID)).
			Msg("Queuing task until executor registers")

	default:
		if _, err := executor.AddTask(m.Task); err != nil {
			logger.Warn().Err(err).Msg("Dropping duplicate task")
			return
		}
		logger.Info().Str("executor_id", string(executor.ID)).Msg("Sending task to executor")
		a.transport.Send(executor.Endpoint, m)
		a.isolator.ResourcesChanged(framework.ID, framework.Info, executor.Info, executor.Resources)
		metrics.TasksStarted.Inc()
		a.stats.TasksStarted++
		a.publish(events.EventTaskStarted, "task sent to executor",
			map[string]string{"task_id": string(m.Task.TaskID)})
	}

	// An embedded executor spec that disagrees with the live executor is a
	// framework bug; the task still runs under the existing executor.
	if m.Task.Executor != nil && executor != nil && m.Task.Executor.URI != executor.Info.URI {
		logger.Warn().
			Str("executor_id", string(executor.ID)).
			Str("task_uri", m.Task.Executor.URI).
			Str("executor_uri", executor.Info.URI).
			Msg("Task embeds an executor spec that differs from the running executor")
	}
}

// launchExecutor creates the executor record, queues the first task and
// starts the executor process.
func (a *Agent) launchExecutor(framework *registry.Framework, executorInfo types.ExecutorInfo,
	task types.TaskDescription) {
	logger := log.WithExecutor(string(executorInfo.ExecutorID)).With().
		Str("framework_id", string(framework.ID)).Logger()

	directory, err := workDirectory(a.cfg.WorkDir, a.id, framework.ID, executorInfo.ExecutorID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to allocate executor work directory")
		a.sendUnreliableUpdate(framework.ID, task.TaskID, types.TaskLost,
			"failed to allocate executor work directory")
		a.removeFrameworkIfIdle(framework)
		return
	}

	executor, err := framework.CreateExecutor(executorInfo, directory)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create executor")
		return
	}
	if err := executor.Queue(task); err != nil {
		logger.Warn().Err(err).Msg("Dropping duplicate task")
	}

	logger.Info().Str("directory", directory).Msg("Launching executor")
	pid, err := a.isolator.LaunchExecutor(framework.ID, framework.Info, executorInfo, directory)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to launch executor")
		framework.DestroyExecutor(executor.ID)
		a.sendUnreliableUpdate(framework.ID, task.TaskID, types.TaskLost,
			"failed to launch executor")
		a.removeFrameworkIfIdle(framework)
		return
	}

	// pid 0 means the isolation module owns the executor's lifecycle and
	// its exit is reported some other way.
	if pid != 0 {
		a.watcher.Watch(framework.ID, executor.ID, pid)
	}
	a.publish(events.EventExecutorLaunched, "executor launched", map[string]string{
		"framework_id": string(framework.ID),
		"executor_id":  string(executor.ID),
	})
}

func (a *Agent) killTask(m messages.KillTask) {
	logger := log.WithFramework(string(m.FrameworkID)).With().
		Str("task_id", string(m.TaskID)).Logger()

	framework := a.registry.Framework(m.FrameworkID)
	if framework == nil {
		logger.Warn().Msg("Cannot kill task of unknown framework")
		a.sendUnreliableUpdate(m.FrameworkID, m.TaskID, types.TaskLost, "unknown framework")
		return
	}

	executor := framework.ExecutorForTask(m.TaskID)
	if executor == nil {
		logger.Warn().Msg("Cannot kill unknown task")
		a.sendUnreliableUpdate(m.FrameworkID, m.TaskID, types.TaskLost, "unknown task")
		return
	}

	if !executor.Registered() {
		// The executor never came up; drop the queued task and report it
		// killed on its behalf.
		logger.Info().Str("executor_id", string(executor.ID)).
			Msg("Removing queued task of unregistered executor")
		executor.RemoveTask(m.TaskID)
		a.isolator.ResourcesChanged(framework.ID, framework.Info, executor.Info, executor.Resources)
		a.sendUnreliableUpdate(m.FrameworkID, m.TaskID, types.TaskKilled,
			"killed before the executor registered")
		return
	}

	a.transport.Send(executor.Endpoint, m)
}

func (a *Agent) killFramework(frameworkID types.FrameworkID) {
	logger := log.WithFramework(string(frameworkID))
	framework := a.registry.Framework(frameworkID)
	if framework == nil {
		logger.Warn().Msg("Cannot kill unknown framework")
		return
	}
	logger.Info().Msg("Killing framework")
	a.destroyFramework(framework)
}

// destroyFramework kills every executor and drops the framework record,
// pending status updates included.
func (a *Agent) destroyFramework(framework *registry.Framework) {
	for _, executorID := range sortedExecutorIDs(framework) {
		a.removeExecutor(framework, framework.Executor(executorID), true)
	}
	a.registry.RemoveFramework(framework.ID)
	a.publish(events.EventFrameworkRemoved, "framework removed",
		map[string]string{"framework_id": string(framework.ID)})
}

// removeExecutor drops the executor record. When killed is set the executor
// process is told to exit and the isolation module tears it down; the
// resulting reaper notification finds no record and is ignored.
func (a *Agent) removeExecutor(framework *registry.Framework, executor *registry.Executor, killed bool) {
	if killed {
		if executor.Registered() {
			a.transport.Send(executor.Endpoint, messages.KillExecutor{
				FrameworkID: framework.ID,
				ExecutorID:  executor.ID,
			})
		}
		a.isolator.KillExecutor(framework.ID, framework.Info, executor.Info)
	}
	framework.DestroyExecutor(executor.ID)
}

// removeFrameworkIfIdle retires a framework once it has no executors and no
// status updates awaiting acknowledgement.
func (a *Agent) removeFrameworkIfIdle(framework *registry.Framework) {
	if len(framework.Executors) > 0 || !framework.Updates.Empty() {
		return
	}
	logger := log.WithFramework(string(framework.ID))
	logger.Info().Msg("Removing idle framework")
	a.registry.RemoveFramework(framework.ID)
	a.publish(events.EventFrameworkRemoved, "framework removed",
		map[string]string{"framework_id": string(framework.ID)})
}

// frameworkMessage relays an opaque payload. A message arriving from the
// executor's own endpoint flows up to the scheduler; anything else flows
// down to the executor.
func (a *Agent) frameworkMessage(from transport.Endpoint, m messages.FrameworkMessage) {
	logger := log.WithFramework(string(m.FrameworkID)).With().
		Str("executor_id", string(m.ExecutorID)).Logger()

	framework := a.registry.Framework(m.FrameworkID)
	if framework == nil {
		logger.Warn().Msg("Dropping message for unknown framework")
		a.invalidFrameworkMessage()
		return
	}
	executor := framework.Executor(m.ExecutorID)
	if executor == nil {
		logger.Warn().Msg("Dropping message for unknown executor")
		a.invalidFrameworkMessage()
		return
	}

	if executor.Registered() && from == executor.Endpoint {
		if framework.SchedulerEndpoint == "" {
			logger.Warn().Msg("Dropping executor message, no scheduler endpoint")
			a.invalidFrameworkMessage()
			return
		}
		m.AgentID = a.id
		a.transport.Send(transport.Endpoint(framework.SchedulerEndpoint), m)
	} else {
		if !executor.Registered() {
			logger.Warn().Msg("Dropping message for unregistered executor")
			a.invalidFrameworkMessage()
			return
		}
		a.transport.Send(executor.Endpoint, m)
	}

	metrics.ValidFrameworkMessages.Inc()
	a.stats.ValidFrameworkMessages++
}

func (a *Agent) invalidFrameworkMessage() {
	metrics.InvalidFrameworkMessages.Inc()
	a.stats.InvalidFrameworkMessages++
}

func (a *Agent) updateFramework(m messages.UpdateFramework) {
	logger := log.WithFramework(string(m.FrameworkID))
	framework := a.registry.Framework(m.FrameworkID)
	if framework == nil {
		logger.Warn().Msg("Cannot update unknown framework")
		return
	}
	logger.Info().
		Str("scheduler", m.SchedulerEndpoint).Msg("Updating framework scheduler endpoint")
	framework.SchedulerEndpoint = m.SchedulerEndpoint
}

func (a *Agent) statusUpdate(m messages.StatusUpdate) {
	update := m.Update
	logger := log.WithFramework(string(update.FrameworkID)).With().
		Str("task_id", string(update.Status.TaskID)).
		Str("state", string(update.Status.State)).Logger()

	framework := a.registry.Framework(update.FrameworkID)
	if framework == nil {
		logger.Warn().Msg("Dropping status update for unknown framework")
		metrics.InvalidStatusUpdates.Inc()
		a.stats.InvalidStatusUpdates++
		return
	}
	executor := framework.ExecutorForTask(update.Status.TaskID)
	if executor == nil {
		logger.Warn().Msg("Dropping status update for unknown task")
		metrics.InvalidStatusUpdates.Inc()
		a.stats.InvalidStatusUpdates++
		return
	}

	logger.Info().Msg("Status update")
	metrics.ValidStatusUpdates.Inc()
	a.stats.ValidStatusUpdates++

	update.AgentID = a.id
	update.ExecutorID = executor.ID
	if update.Timestamp.IsZero() {
		update.Timestamp = a.now()
	}

	executor.UpdateTaskState(update.Status.TaskID, update.Status.State)
	if update.Status.State.Terminal() {
		executor.RemoveTask(update.Status.TaskID)
		a.isolator.ResourcesChanged(framework.ID, framework.Info, executor.Info, executor.Resources)
		metrics.TasksFinished.WithLabelValues(string(update.Status.State)).Inc()
		a.stats.terminal(update.Status.State)
		a.publish(events.EventTaskTerminal, "task reached terminal state", map[string]string{
			"task_id": string(update.Status.TaskID),
			"state":   string(update.Status.State),
		})
	}

	if a.journal != nil {
		recorded, err := a.journal.Record(update)
		if err != nil {
			// The registry already applied the transition; losing the
			// durable copy here would break the at-least-once contract,
			// so the agent dies and recovers from the journal on restart.
			a.fatal("Failed to journal status update for task %q: %v",
				update.Status.TaskID, err)
			return
		}
		update = recorded
	}

	if a.master != "" {
		a.transport.Send(a.master, messages.StatusUpdate{Update: update, Reliable: true})
	}
	framework.Updates.Insert(a.now(), update)

	if executor.Registered() {
		a.transport.Send(executor.Endpoint, messages.StatusUpdateAck{
			AgentID:     a.id,
			FrameworkID: framework.ID,
			TaskID:      update.Status.TaskID,
		})
	}
}

func (a *Agent) statusUpdateAcknowledged(m messages.StatusUpdateAck) {
	logger := log.WithFramework(string(m.FrameworkID)).With().
		Str("task_id", string(m.TaskID)).Logger()

	framework := a.registry.Framework(m.FrameworkID)
	acked := false
	if framework != nil {
		acked = framework.Updates.Ack(m.TaskID)
	}
	if !acked {
		acked = a.recovered.Ack(m.TaskID)
	}
	if !acked {
		logger.Debug().Msg("Ignoring acknowledgement with no pending update")
	}

	if a.journal != nil {
		if err := a.journal.Acknowledge(m.FrameworkID, m.TaskID); err != nil {
			logger.Error().Err(err).Msg("Failed to acknowledge journaled update")
		}
	}
	if framework != nil {
		a.removeFrameworkIfIdle(framework)
	}
}

func (a *Agent) registerExecutor(from transport.Endpoint, m messages.RegisterExecutor) {
	logger := log.WithExecutor(string(m.ExecutorID)).With().
		Str("framework_id", string(m.FrameworkID)).
		Str("from", string(from)).Logger()

	framework := a.registry.Framework(m.FrameworkID)
	if framework == nil {
		logger.Warn().Msg("Killing executor of unknown framework")
		a.transport.Send(from, messages.KillExecutor{
			FrameworkID: m.FrameworkID, ExecutorID: m.ExecutorID,
		})
		return
	}
	executor := framework.Executor(m.ExecutorID)
	if executor == nil || executor.Registered() {
		logger.Warn().Msg("Killing unexpected executor registration")
		a.transport.Send(from, messages.KillExecutor{
			FrameworkID: m.FrameworkID, ExecutorID: m.ExecutorID,
		})
		return
	}

	if err := executor.Register(from); err != nil {
		logger.Error().Err(err).Msg("Failed to register executor")
		return
	}
	logger.Info().Msg("Executor registered")

	a.transport.Send(from, messages.ExecutorRegistered{
		FrameworkID: framework.ID,
		ExecutorID:  executor.ID,
		AgentID:     a.id,
		Hostname:    a.info.Hostname,
		Data:        executor.Info.Data,
	})

	// Flush tasks queued while the executor was starting, in task order.
	queued := sortedQueuedTaskIDs(executor)
	for _, taskID := range queued {
		task := executor.QueuedTasks[taskID]
		if _, err := executor.AddTask(task); err != nil {
			logger.Warn().Err(err).Str("task_id", string(taskID)).
				Msg("Failed to launch queued task")
			continue
		}
		a.transport.Send(from, messages.RunTask{
			Framework:         framework.Info,
			FrameworkID:       framework.ID,
			SchedulerEndpoint: framework.SchedulerEndpoint,
			Task:              task,
		})
		metrics.TasksStarted.Inc()
		a.stats.TasksStarted++
		a.publish(events.EventTaskStarted, "task sent to executor",
			map[string]string{"task_id": string(taskID)})
	}
	if len(queued) > 0 {
		a.isolator.ResourcesChanged(framework.ID, framework.Info, executor.Info, executor.Resources)
	}
}

func (a *Agent) executorExited(frameworkID types.FrameworkID, executorID types.ExecutorID, status int) {
	logger := log.WithExecutor(string(executorID)).With().
		Str("framework_id", string(frameworkID)).Int("status", status).Logger()
	logger.Info().Msg("Executor exited")

	metrics.ExecutorsExited.Inc()
	a.stats.ExecutorsExited++
	a.publish(events.EventExecutorExited, "executor exited", map[string]string{
		"framework_id": string(frameworkID),
		"executor_id":  string(executorID),
	})

	if a.master != "" {
		a.transport.Send(a.master, messages.ExitedExecutor{
			AgentID:     a.id,
			FrameworkID: frameworkID,
			ExecutorID:  executorID,
			Result:      status,
		})
	}

	framework := a.registry.Framework(frameworkID)
	if framework == nil {
		return
	}
	executor := framework.Executor(executorID)
	if executor == nil {
		return
	}
	a.removeExecutor(framework, executor, false)
	a.removeFrameworkIfIdle(framework)
}

// tick re-sends every status update whose acknowledgement deadline lapsed.
func (a *Agent) tick(now time.Time) {
	if a.state != stateRegistered || a.master == "" {
		return
	}
	for _, framework := range a.registry.Frameworks() {
		for _, update := range framework.Updates.Expire(now) {
			a.resend(update)
		}
	}
	for _, update := range a.recovered.Expire(now) {
		a.resend(update)
	}
}

func (a *Agent) resend(update types.StatusUpdate) {
	logger := log.WithFramework(string(update.FrameworkID))
	logger.Debug().
		Str("task_id", string(update.Status.TaskID)).
		Str("state", string(update.Status.State)).
		Msg("Resending unacknowledged status update")
	a.transport.Send(a.master, messages.StatusUpdate{Update: update, Reliable: true})
	metrics.StatusUpdateRetries.Inc()
	a.stats.StatusUpdateRetries++
}

func (a *Agent) peerExited(peer transport.Endpoint) {
	if peer != a.master {
		return
	}
	// Keep the id and all state; the detector will announce the next
	// master and trigger reregistration.
	logger := log.WithComponent("agent")
	logger.Warn().Str("master", string(peer)).
		Msg("Lost connection to master, waiting for a new one")
	metrics.Registered.Set(0)
	a.publish(events.EventMasterLost, "lost connection to master",
		map[string]string{"master": string(peer)})
}

// sendUnreliableUpdate reports a state the agent asserts on a task's behalf,
// outside the retry pipeline.
func (a *Agent) sendUnreliableUpdate(frameworkID types.FrameworkID, taskID types.TaskID,
	state types.TaskState, reason string) {
	if a.master == "" {
		return
	}
	a.transport.Send(a.master, messages.StatusUpdate{
		Update: types.StatusUpdate{
			FrameworkID: frameworkID,
			AgentID:     a.id,
			Status: types.TaskStatus{
				TaskID:  taskID,
				State:   state,
				Message: []byte(reason),
			},
			Timestamp: a.now(),
		},
		Reliable: false,
	})
}

func sortedExecutorIDs(f *registry.Framework) []types.ExecutorID {
	ids := make([]types.ExecutorID, 0, len(f.Executors))
	for id := range f.Executors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedQueuedTaskIDs(e *registry.Executor) []types.TaskID {
	ids := make([]types.TaskID, 0, len(e.QueuedTasks))
	for id := range e.QueuedTasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
