package server

import "hill/internal/auth"

// Session holds the per-connection state the teacher's Session carried
// (an authenticated operator once AUTH succeeds on the admin line
// protocol) plus the thread slot a data-plane connection claims from
// engine.Store on its first Insert, Update or CallForMemory.
type Session struct {
	user *auth.User

	tid        int
	hasSlot    bool
	nextRegion int
}

// IsAuthed reports whether AUTH has succeeded on this connection.
func (s *Session) IsAuthed() bool {
	return s.user != nil
}
