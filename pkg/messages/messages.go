package messages

import (
	"github.com/cuemby/burrow/pkg/types"
)

// Message is any protocol record with a wire tag.
type Message interface {
	Tag() string
}

// Wire tags. The tag is the stable identity of a message; struct names may
// change, tags may not.
const (
	TagNewMasterDetected  = "NewMasterDetected"
	TagNoMasterDetected   = "NoMasterDetected"
	TagRegisterAgent      = "RegisterAgent"
	TagReregisterAgent    = "ReregisterAgent"
	TagAgentRegistered    = "AgentRegistered"
	TagAgentReregistered  = "AgentReregistered"
	TagRunTask            = "RunTask"
	TagKillTask           = "KillTask"
	TagKillFramework      = "KillFramework"
	TagFrameworkMessage   = "FrameworkMessage"
	TagUpdateFramework    = "UpdateFramework"
	TagStatusUpdate       = "StatusUpdate"
	TagStatusUpdateAck    = "StatusUpdateAck"
	TagRegisterExecutor   = "RegisterExecutor"
	TagExecutorRegistered = "ExecutorRegistered"
	TagKillExecutor       = "KillExecutor"
	TagExitedExecutor     = "ExitedExecutor"
	TagPing               = "Ping"
	TagPong               = "Pong"
)

// NewMasterDetected tells the agent where the current master lives.
type NewMasterDetected struct {
	Master string `json:"master"`
}

// NoMasterDetected tells the agent there is no elected master.
type NoMasterDetected struct{}

// RegisterAgent asks the master to admit a new agent.
type RegisterAgent struct {
	Agent types.AgentInfo `json:"agent"`
}

// ReregisterAgent re-introduces a known agent to a (possibly new) master,
// carrying every launched task so the master can rebuild its view.
type ReregisterAgent struct {
	AgentID types.AgentID   `json:"agent_id"`
	Agent   types.AgentInfo `json:"agent"`
	Tasks   []types.Task    `json:"tasks,omitempty"`
}

// AgentRegistered is the master's reply to RegisterAgent.
type AgentRegistered struct {
	AgentID types.AgentID `json:"agent_id"`
}

// AgentReregistered is the master's reply to ReregisterAgent.
type AgentReregistered struct {
	AgentID types.AgentID `json:"agent_id"`
}

// RunTask assigns a task. Sent master to agent, and relayed agent to
// executor once the executor is registered.
type RunTask struct {
	Framework         types.FrameworkInfo   `json:"framework"`
	FrameworkID       types.FrameworkID     `json:"framework_id"`
	SchedulerEndpoint string                `json:"scheduler_endpoint"`
	Task              types.TaskDescription `json:"task"`
}

// KillTask requests cooperative termination of a task. Sent master to agent
// and relayed agent to executor.
type KillTask struct {
	FrameworkID types.FrameworkID `json:"framework_id"`
	TaskID      types.TaskID      `json:"task_id"`
}

// KillFramework removes a framework and all of its executors.
type KillFramework struct {
	FrameworkID types.FrameworkID `json:"framework_id"`
}

// FrameworkMessage is an opaque payload relayed between a framework
// scheduler and one of its executors, in either direction.
type FrameworkMessage struct {
	AgentID     types.AgentID     `json:"agent_id"`
	FrameworkID types.FrameworkID `json:"framework_id"`
	ExecutorID  types.ExecutorID  `json:"executor_id"`
	Data        []byte            `json:"data,omitempty"`
}

// UpdateFramework carries a framework's new scheduler endpoint.
type UpdateFramework struct {
	FrameworkID       types.FrameworkID `json:"framework_id"`
	SchedulerEndpoint string            `json:"scheduler_endpoint"`
}

// StatusUpdate reports a task state transition. Executors send it to the
// agent; the agent relays it to the master with Reliable set, which obliges
// the master to acknowledge.
type StatusUpdate struct {
	Update   types.StatusUpdate `json:"update"`
	Reliable bool               `json:"reliable"`
}

// StatusUpdateAck retires a delivered status update. Sent master to agent,
// and agent to executor.
type StatusUpdateAck struct {
	AgentID     types.AgentID     `json:"agent_id"`
	FrameworkID types.FrameworkID `json:"framework_id"`
	TaskID      types.TaskID      `json:"task_id"`
}

// RegisterExecutor is the first message an executor process sends back to
// its agent.
type RegisterExecutor struct {
	FrameworkID types.FrameworkID `json:"framework_id"`
	ExecutorID  types.ExecutorID  `json:"executor_id"`
}

// ExecutorRegistered gives a freshly registered executor its working
// context.
type ExecutorRegistered struct {
	FrameworkID types.FrameworkID `json:"framework_id"`
	ExecutorID  types.ExecutorID  `json:"executor_id"`
	AgentID     types.AgentID     `json:"agent_id"`
	Hostname    string            `json:"hostname"`
	Data        []byte            `json:"data,omitempty"`
}

// KillExecutor tells an executor process to exit.
type KillExecutor struct {
	FrameworkID types.FrameworkID `json:"framework_id"`
	ExecutorID  types.ExecutorID  `json:"executor_id"`
}

// ExitedExecutor reports an executor exit to the master.
type ExitedExecutor struct {
	AgentID     types.AgentID     `json:"agent_id"`
	FrameworkID types.FrameworkID `json:"framework_id"`
	ExecutorID  types.ExecutorID  `json:"executor_id"`
	Result      int               `json:"result"`
}

// Ping and Pong are the master's liveness probe of the agent.
type Ping struct{}
type Pong struct{}

func (NewMasterDetected) Tag() string  { return TagNewMasterDetected }
func (NoMasterDetected) Tag() string   { return TagNoMasterDetected }
func (RegisterAgent) Tag() string      { return TagRegisterAgent }
func (ReregisterAgent) Tag() string    { return TagReregisterAgent }
func (AgentRegistered) Tag() string    { return TagAgentRegistered }
func (AgentReregistered) Tag() string  { return TagAgentReregistered }
func (RunTask) Tag() string            { return TagRunTask }
func (KillTask) Tag() string           { return TagKillTask }
func (KillFramework) Tag() string      { return TagKillFramework }
func (FrameworkMessage) Tag() string   { return TagFrameworkMessage }
func (UpdateFramework) Tag() string    { return TagUpdateFramework }
func (StatusUpdate) Tag() string       { return TagStatusUpdate }
func (StatusUpdateAck) Tag() string    { return TagStatusUpdateAck }
func (RegisterExecutor) Tag() string   { return TagRegisterExecutor }
func (ExecutorRegistered) Tag() string { return TagExecutorRegistered }
func (KillExecutor) Tag() string       { return TagKillExecutor }
func (ExitedExecutor) Tag() string     { return TagExitedExecutor }
func (Ping) Tag() string               { return TagPing }
func (Pong) Tag() string               { return TagPong }
