/*
Package messages defines the tagged records exchanged between the master, the
agent and executor processes, together with their wire encoding.

Every message carries a string tag that selects the concrete Go type on
decode. Payloads are JSON, which keeps the schema evolvable: fields unknown
to the receiver are ignored and fields missing on the wire take their zero
value, so either side of a link can be upgraded independently.
*/
package messages
