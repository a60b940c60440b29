package streaming

import "time"

// Observer receives session lifecycle signals. Implementations must be safe
// for concurrent use because sessions run in parallel.
type Observer interface {
	SessionStarted(pipeline string)
	ChunkSent(bytes int)
	ResponseReceived(depth int, final bool)
	ProtocolViolation()
	SessionFinished(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(string)                 {}
func (nopObserver) ChunkSent(int)                         {}
func (nopObserver) ResponseReceived(int, bool)            {}
func (nopObserver) ProtocolViolation()                    {}
func (nopObserver) SessionFinished(string, time.Duration) {}

func NopObserver() Observer {
	return nopObserver{}
}
