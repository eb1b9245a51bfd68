/*
Package updates implements at-least-once delivery of task status updates to
the master.

Each framework owns a Queue of unacknowledged updates bucketed by retry
deadline. An update is inserted when relayed to the master, erased when the
master acknowledges it, and re-sent (with a fresh deadline, so the queue
stays bounded) whenever its deadline lapses.

The optional Journal persists updates to disk so an agent restart can still
finalize task state for a master that never saw the exit: every update is
recorded before it is acknowledged to the executor, and a stream retires
only once nothing is pending and the last acknowledged state is terminal.
*/
package updates
