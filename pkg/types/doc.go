// Package types holds the core records shared between the agent, the master
// protocol and the executor protocol: frameworks, executors, tasks and task
// status updates. Identifiers are opaque strings assigned by the master.
package types
