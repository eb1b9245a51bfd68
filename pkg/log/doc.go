// Package log provides the global zerolog logger and helpers for attaching
// the identifiers that recur throughout the agent: component, framework,
// executor and task.
package log
