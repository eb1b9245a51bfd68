/*
Package registry is the agent's in-memory model of its tenants: frameworks,
their executors, and the tasks those executors run.

Ownership is strictly hierarchical. The registry owns frameworks, a
framework owns its executors, an executor owns its tasks. Nothing outside
this hierarchy holds references into it; external collaborators carry
(framework id, executor id) pairs and look records up when they need them.

The registry is mutated only from the agent's event loop and is therefore
unsynchronized by construction.
*/
package registry
