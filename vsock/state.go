package vsock

// State is a flow's connection-lifecycle state, ported from the implicit
// state machine original_source/kernel/src/virtio/vsock/stream.rs drives
// through Connect/Shutdown/Reset events.
type State int

const (
	StateClosed State = iota
	StateListening
	StateSynSent
	StateEstablished
	StateHalfClosedLocal  // we've sent Shutdown{tx}, peer may still send
	StateHalfClosedRemote // peer sent Shutdown{tx}, we may still send
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateListening:
		return "listening"
	case StateSynSent:
		return "syn-sent"
	case StateEstablished:
		return "established"
	case StateHalfClosedLocal:
		return "half-closed-local"
	case StateHalfClosedRemote:
		return "half-closed-remote"
	default:
		return "unknown"
	}
}
