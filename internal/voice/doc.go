// Package voice owns the lifecycle of one guild's voice connection.
//
// A Session moves between Disconnected, Connecting, Connected, and
// Reconnecting. Connects are retried with a capped multiplicative backoff, and
// a session invalidated by the gateway waits longer before trying again.
// Transport failures never escape Connect or EnsureConnection; callers only
// see a boolean and can inspect LastError.
//
// Playback runs on its own goroutine and reports back through the completion
// callback passed to Play. An idle timer disconnects the session when nothing
// has played for a while.
package voice
