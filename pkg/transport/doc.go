/*
Package transport moves protocol messages between the master, agents and
executor processes.

Every process owns one Node: an HTTP server whose /inbox accepts encoded
envelopes, plus an outbox that delivers messages to peer endpoints. Delivery
is asynchronous and fire-and-forget; failed sends are dropped silently
because every reliable exchange in the protocol is retried at a higher
layer. Messages to a given peer are delivered in the order they were sent.

A Node can also link to a peer it cares about: the link probes the peer's
/health endpoint and reports once, through the exited callback, when the
peer stops answering.
*/
package transport
