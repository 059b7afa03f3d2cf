package session

type CloseReason string

const (
	CloseReasonSocketClosed CloseReason = "socket_closed"
	CloseReasonKeyword      CloseReason = "keyword"
	CloseReasonBackendError CloseReason = "backend_error"
	CloseReasonShutdown     CloseReason = "shutdown"
)

// Detail is a human readable description for logs and summaries. A backend
// failure and an exit keyword close the connection the same way; the reason
// only distinguishes them in reporting.
func (r CloseReason) Detail() string {
	switch r {
	case CloseReasonSocketClosed:
		return "client closed the audio socket"
	case CloseReasonKeyword:
		return "exit keyword recognized in a final transcript"
	case CloseReasonBackendError:
		return "recognition backend stream failed"
	case CloseReasonShutdown:
		return "relay server is shutting down"
	default:
		return "unknown"
	}
}
