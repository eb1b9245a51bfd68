/*
Package metrics defines the agent's Prometheus metrics.

All metrics are registered against the default registry at package init and
updated from the agent loop; the /metrics endpoint serves them via
promhttp. Gauges (burrow_tasks_total, burrow_executors_total,
burrow_status_updates_pending) mirror the agent's in-memory inventory after
every event; counters track lifecycle totals such as launches, terminal
states, retries and dropped messages.

Labels stay low-cardinality: task state is the only label in use. Task and
framework ids belong in logs, not labels.
*/
package metrics
