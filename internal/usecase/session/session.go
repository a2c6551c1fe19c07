// Package session owns the subscription lifecycle of one user: the mode
// state machine, the live consent switch, and the client-reported
// location the publisher samples.
package session

// Session bundles the per-user components the transport layer drives.
type Session struct {
	ID          string
	UserID      string
	Coordinator *Coordinator
	Consent     *ConsentSwitch
	Location    *ReportedLocation
}

// Close disposes the session's coordinator and everything under it.
func (s *Session) Close() {
	s.Coordinator.Close()
}
