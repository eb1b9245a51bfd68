/*
Package api serves the agent's read-only HTTP introspection endpoints:

	/info.json        identity, registration state, current master
	/frameworks.json  frameworks with their executors
	/tasks.json       every launched task
	/stats.json       lifetime counters and uptime
	/vars             effective configuration
	/metrics          Prometheus exposition

All endpoints are built from a single Snapshot taken on the agent's event
loop, so each response is internally consistent.
*/
package api
