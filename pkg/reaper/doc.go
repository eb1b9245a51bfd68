/*
Package reaper harvests exited executor child processes.

The reaper is its own single-threaded actor: a loop that performs a
non-blocking wait for any exited child about once a second. The agent
registers interest in a pid with Watch; when that pid is harvested the
reaper notifies the agent's listener exactly once. A pid can legitimately
exit before Watch is called, so harvested statuses for unwatched pids are
buffered until a later Watch claims them.

The agent cannot track executor exits without the reaper, so the reaper
terminating for any reason other than Stop is fatal to the process hosting
it; callers watch Done for that.
*/
package reaper
