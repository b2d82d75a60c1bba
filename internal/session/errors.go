package session

import "errors"

// ErrNotFound is returned by Lookup, End, and Remove when session_id
// doesn't name a live session. It propagates to the internal HTTP
// boundary as a 404 (§7).
var ErrNotFound = errors.New("session: not found")
