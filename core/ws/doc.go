// Package ws is the WebSocket edge of the realtime delivery subsystem.
//
// Handler upgrades HTTP requests, resolves the client's auth token to a user
// identity through the TokenVerifier collaborator, registers the connection
// with the delivery coordinator, and runs the read loop. One goroutine per
// connection reads client frames; a second one sends protocol pings.
//
// Authentication failure is the only hard rejection: the socket is closed
// with CloseAuthFailed and a reason string. Malformed or unrecognized client
// frames get an error envelope in reply, never a forced disconnect.
package ws
