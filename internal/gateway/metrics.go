package gateway

import "sync/atomic"

// Metrics captures lightweight in-process counters for request volume
// and auth outcomes.
type Metrics struct {
	Requests          atomic.Uint64
	NonceIssued       atomic.Uint64
	VerifyAttempts    atomic.Uint64
	MessagesSent      atomic.Uint64
	InboxPolls        atomic.Uint64
	VoiceUploads      atomic.Uint64
	CallSignalSockets atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters, safe to
// log or serialize.
type MetricsSnapshot struct {
	Requests          uint64
	NonceIssued       uint64
	VerifyAttempts    uint64
	MessagesSent      uint64
	InboxPolls        uint64
	VoiceUploads      uint64
	CallSignalSockets uint64
}

// Snapshot reads the current counters.
func (s *Server) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:          s.metrics.Requests.Load(),
		NonceIssued:       s.metrics.NonceIssued.Load(),
		VerifyAttempts:    s.metrics.VerifyAttempts.Load(),
		MessagesSent:      s.metrics.MessagesSent.Load(),
		InboxPolls:        s.metrics.InboxPolls.Load(),
		VoiceUploads:      s.metrics.VoiceUploads.Load(),
		CallSignalSockets: s.metrics.CallSignalSockets.Load(),
	}
}
