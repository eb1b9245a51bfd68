/*
Package detector tells the agent where the current master lives.

Two implementations exist: Standalone announces a fixed address once, and
File polls an election file that an external coordination system keeps
up to date. Both speak to the agent through the same announcement messages
the protocol uses, so the agent cannot tell a detector from a peer.
*/
package detector
