// Package matchmaking pairs anonymous searchers into one-to-one sessions and
// relays WebRTC signaling between the two participants.
//
// All shared state (the connection registry, the matching queue and the
// session table) is owned by a single Hub goroutine. Per-connection workers
// talk to it through method calls that are serialized onto the hub's command
// channel, so enqueue, match, dequeue-both and session creation happen as one
// indivisible step. Disconnects travel on a separate channel that the hub
// drains before any other command.
package matchmaking
