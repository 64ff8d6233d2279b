package service

// Ready reports whether intervalMs has elapsed since lastSentMs. The
// subtraction wraps, so a millisecond counter overflow is handled.
func Ready(nowMs, lastSentMs, intervalMs uint32) bool {
	return nowMs-lastSentMs >= intervalMs
}

// TransmissionScheduler gates periodic publishing on a wrapping millisecond
// counter. The send time is recorded whenever the gate opens, regardless of
// the outcome of the publish that follows.
type TransmissionScheduler struct {
	lastSentMs uint32
}

func (s *TransmissionScheduler) Tick(nowMs, intervalMs uint32) bool {
	if !Ready(nowMs, s.lastSentMs, intervalMs) {
		return false
	}
	s.lastSentMs = nowMs
	return true
}

func (s *TransmissionScheduler) LastSent() uint32 {
	return s.lastSentMs
}
