/*
Package agent implements the per-node daemon of the cluster: it registers
with the elected master, launches executors for frameworks, relays tasks and
messages between schedulers and executors, and reliably forwards task status
updates until the master acknowledges them.

# Architecture

The agent is an actor. Every input — protocol messages from the transport,
executor exits from the reaper, retry ticks, snapshot requests from the HTTP
layer — is converted to an event on a single inbox channel and handled by
one goroutine. Framework, executor and task state (pkg/registry) is
therefore mutated without locks.

	master ─┐                           ┌─ executor processes
	        ▼                           ▼
	   transport inbox ──► agent loop ◄── reaper exits
	                          │
	             registry / updates / isolation

# Registration

The agent starts unregistered. A master detector feeds it NewMasterDetected
events; the first registration yields an agent id which is permanent for the
life of the process. When a new master is elected the agent re-registers
with the same id and its full set of launched tasks so the master can
rebuild its view.

# Status updates

Updates from executors are delivered to the master at-least-once: each
update is stored under a retry deadline and re-sent until the master
acknowledges it. With checkpointing enabled updates are also journaled to
disk before the executor is acknowledged, and replayed on restart.
*/
package agent
