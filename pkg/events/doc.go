/*
Package events provides a publish/subscribe broker for agent lifecycle
events: registration changes, framework and executor lifecycle, task state
transitions.

The broker fans events out to subscriber channels. Slow subscribers are
skipped rather than blocking the publisher; the event stream is advisory,
not a reliable log.
*/
package events
