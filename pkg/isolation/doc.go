/*
Package isolation is the agent's outbound interface to whatever launches,
constrains and kills executor processes.

The Module interface is deliberately narrow: the agent tells the module to
launch an executor, advises it whenever an executor's task resource vector
changes, and asks it to kill an executor. Exits are never reported through
the module; they flow back through the process reaper.

The process module included here launches executors as plain child
processes with no resource confinement. A module may return pid 0 from
LaunchExecutor to signal that it manages the executor's lifecycle itself
and the agent must not reap.
*/
package isolation
