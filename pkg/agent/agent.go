package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/isolation"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/messages"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/registry"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/updates"
)

const (
	// inboxDepth bounds the event backlog. Protocol messages are
	// unreliable by contract, so overflow drops rather than blocks.
	inboxDepth = 1024

	// tickInterval paces the status-update retry sweep.
	tickInterval = time.Second
)

// Watcher registers interest in an executor pid. Satisfied by
// *reaper.Reaper.
type Watcher interface {
	Watch(frameworkID types.FrameworkID, executorID types.ExecutorID, pid int)
}

// registration is the agent's master-registration state.
type registration int

const (
	stateUnregistered registration = iota
	stateRegistering
	stateRegistered
	stateReregistering
)

func (s registration) String() string {
	switch s {
	case stateRegistering:
		return "registering"
	case stateRegistered:
		return "registered"
	case stateReregistering:
		return "reregistering"
	default:
		return "unregistered"
	}
}

// Options collects the agent's collaborators.
type Options struct {
	Config    *config.Config
	Info      types.AgentInfo
	Transport transport.Transport
	Isolation isolation.Module
	Watcher   Watcher

	// Journal enables durable status updates when non-nil.
	Journal *updates.Journal

	// Events receives lifecycle notifications when non-nil.
	Events *events.Broker

	// Local marks single-process deployments where executors run in
	// the agent's own process.
	Local bool
}

// Agent is the per-node daemon. All state below the inbox is owned by the
// run loop.
type Agent struct {
	cfg       *config.Config
	info      types.AgentInfo
	transport transport.Transport
	isolator  isolation.Module
	watcher   Watcher
	journal   *updates.Journal
	events    *events.Broker
	local     bool

	inbox    chan event
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// Test seams.
	now   func() time.Time
	fatal func(format string, args ...interface{})

	// Owned by the run loop.
	id        types.AgentID
	state     registration
	master    transport.Endpoint
	registry  *registry.Registry
	recovered *updates.Queue
	startTime time.Time
	stats     Stats
}

type event interface{}

type messageEvent struct {
	from transport.Endpoint
	msg  messages.Message
}

type exitEvent struct {
	frameworkID types.FrameworkID
	executorID  types.ExecutorID
	status      int
}

type tickEvent struct {
	now time.Time
}

type peerExitedEvent struct {
	peer transport.Endpoint
}

type snapshotEvent struct {
	reply chan Snapshot
}

// New creates an agent. Start must be called before it processes anything.
func New(opts Options) *Agent {
	return &Agent{
		cfg:       opts.Config,
		info:      opts.Info,
		transport: opts.Transport,
		isolator:  opts.Isolation,
		watcher:   opts.Watcher,
		journal:   opts.Journal,
		events:    opts.Events,
		local:     opts.Local,
		inbox:     make(chan event, inboxDepth),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
		fatal: func(format string, args ...interface{}) {
			logger := log.WithComponent("agent")
			logger.Fatal().Msgf(format, args...)
		},
		registry:  registry.New(updates.RetryInterval),
		recovered: updates.NewQueue(updates.RetryInterval),
		startTime: time.Now(),
	}
}

// SetWatcher installs the pid watcher. The watcher usually has the agent as
// its exit listener, so it is wired after construction and before Start.
func (a *Agent) SetWatcher(w Watcher) {
	a.watcher = w
}

// Start initializes the isolation module, replays any journaled updates and
// launches the event loop.
func (a *Agent) Start() error {
	if err := a.isolator.Initialize(a.transport.Addr(), a.cfg, a.local); err != nil {
		return fmt.Errorf("failed to initialize isolation module: %w", err)
	}

	if a.journal != nil {
		pending, err := a.journal.Replay()
		if err != nil {
			return fmt.Errorf("failed to replay status-update journal: %w", err)
		}
		now := a.now()
		for _, update := range pending {
			a.recovered.Insert(now, update)
		}
		if len(pending) > 0 {
			logger := log.WithComponent("agent")
			logger.Info().
				Int("updates", len(pending)).
				Msg("Recovered unacknowledged status updates from journal")
		}
	}

	go a.run()
	return nil
}

// Stop shuts the agent down: every framework is removed, every executor
// killed, and the journal closed. Blocks until the loop has exited.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	<-a.done
}

// Receive is the transport's inbound handler. Never blocks; the inbox drops
// on overflow like a lost datagram.
func (a *Agent) Receive(from transport.Endpoint, msg messages.Message) {
	a.post(messageEvent{from: from, msg: msg})
}

// ExecutorExited implements reaper.Listener.
func (a *Agent) ExecutorExited(frameworkID types.FrameworkID, executorID types.ExecutorID, status int) {
	a.post(exitEvent{frameworkID: frameworkID, executorID: executorID, status: status})
}

// PeerExited is the transport's link-failure handler.
func (a *Agent) PeerExited(peer transport.Endpoint) {
	a.post(peerExitedEvent{peer: peer})
}

// Snapshot returns a consistent copy of the agent's state for the HTTP
// layer. Served by the event loop like any other event.
func (a *Agent) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case a.inbox <- snapshotEvent{reply: reply}:
	case <-a.done:
		return Snapshot{}
	}
	select {
	case snap := <-reply:
		return snap
	case <-a.done:
		return Snapshot{}
	}
}

func (a *Agent) post(ev event) {
	select {
	case a.inbox <- ev:
	case <-a.done:
	default:
		logger := log.WithComponent("agent")
		logger.Warn().Msg("Inbox full, dropping event")
	}
}

func (a *Agent) run() {
	defer close(a.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-a.inbox:
			a.dispatch(ev)
		case now := <-ticker.C:
			a.dispatch(tickEvent{now: now})
		case <-a.stopCh:
			a.shutdown()
			return
		}
	}
}

func (a *Agent) dispatch(ev event) {
	switch ev := ev.(type) {
	case messageEvent:
		a.handleMessage(ev.from, ev.msg)
	case exitEvent:
		a.executorExited(ev.frameworkID, ev.executorID, ev.status)
	case tickEvent:
		a.tick(ev.now)
	case peerExitedEvent:
		a.peerExited(ev.peer)
	case snapshotEvent:
		ev.reply <- a.snapshot()
		return
	}
	a.refreshGauges()
}

func (a *Agent) handleMessage(from transport.Endpoint, msg messages.Message) {
	switch m := msg.(type) {
	case messages.NewMasterDetected:
		a.newMasterDetected(transport.Endpoint(m.Master))
	case messages.NoMasterDetected:
		a.noMasterDetected()
	case messages.AgentRegistered:
		a.registrationCompleted(m.AgentID, false)
	case messages.AgentReregistered:
		a.registrationCompleted(m.AgentID, true)
	case messages.RunTask:
		a.runTask(m)
	case messages.KillTask:
		a.killTask(m)
	case messages.KillFramework:
		a.killFramework(m.FrameworkID)
	case messages.FrameworkMessage:
		a.frameworkMessage(from, m)
	case messages.UpdateFramework:
		a.updateFramework(m)
	case messages.StatusUpdate:
		a.statusUpdate(m)
	case messages.StatusUpdateAck:
		a.statusUpdateAcknowledged(m)
	case messages.RegisterExecutor:
		a.registerExecutor(from, m)
	case messages.Ping:
		a.transport.Send(from, messages.Pong{})
	default:
		logger := log.WithComponent("agent")
		logger.Warn().
			Str("tag", msg.Tag()).Str("from", string(from)).
			Msg("Dropping unexpected message")
	}
}

// shutdown kills every executor and removes every framework before the
// loop exits.
func (a *Agent) shutdown() {
	logger := log.WithComponent("agent")
	logger.Info().Msg("Shutting down")

	for _, framework := range a.registry.Frameworks() {
		a.destroyFramework(framework)
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close status-update journal")
		}
	}
}

func (a *Agent) publish(eventType events.EventType, message string, metadata map[string]string) {
	if a.events == nil {
		return
	}
	a.events.Publish(&events.Event{Type: eventType, Message: message, Metadata: metadata})
}

// refreshGauges re-derives the inventory gauges after each event.
func (a *Agent) refreshGauges() {
	frameworks := a.registry.Frameworks()
	metrics.FrameworksTotal.Set(float64(len(frameworks)))

	executors := 0
	pending := a.recovered.Pending()
	states := make(map[types.TaskState]int)
	for _, framework := range frameworks {
		executors += len(framework.Executors)
		pending += framework.Updates.Pending()
		for _, executor := range framework.Executors {
			for _, task := range executor.LaunchedTasks {
				states[task.State]++
			}
		}
	}

	metrics.ExecutorsTotal.Set(float64(executors))
	metrics.PendingStatusUpdates.Set(float64(pending))
	metrics.TasksTotal.Reset()
	for state, n := range states {
		metrics.TasksTotal.WithLabelValues(string(state)).Set(float64(n))
	}
}
