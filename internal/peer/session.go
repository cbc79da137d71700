package peer

import (
	"net"

	"github.com/google/uuid"
)

// Session is the per-connection state shared by every role: who the
// counterpart is, the handshake seed, and the receive watermarks that back
// duplicate suppression. Access is serialized by the owning peer's mutex.
type Session struct {
	ID       uuid.UUID
	Remote   *net.UDPAddr
	Seed     int64
	Observer *net.UDPAddr

	// Highest processed sequence per source address. The counterpart and
	// the observer run independent counters, so one shared watermark would
	// suppress the wrong datagrams.
	watermarks map[string]uint64
}

// NewSession creates an empty session with a fresh ID.
func NewSession() *Session {
	return &Session{
		ID:         uuid.New(),
		watermarks: make(map[string]uint64),
	}
}

// Connected reports whether a counterpart has been established.
func (s *Session) Connected() bool {
	return s.Remote != nil
}

// Duplicate advances the watermark for the sender and reports whether the
// sequence was already processed. The caller has re-ACKed either way; lost
// ACKs must not wedge the counterpart's retransmission loop.
func (s *Session) Duplicate(from *net.UDPAddr, seq uint64) bool {
	key := from.String()
	if seq <= s.watermarks[key] {
		return true
	}
	s.watermarks[key] = seq
	return false
}

// FromCounterpart reports whether addr is the established counterpart.
func (s *Session) FromCounterpart(addr *net.UDPAddr) bool {
	return s.Remote != nil && s.Remote.String() == addr.String()
}
