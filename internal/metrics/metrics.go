package metrics

import "time"

type Recorder interface {
	ConnectionOpened()
	ConnectionClosed(reason string, duration time.Duration)
	SessionRestarted()
	ResultReceived(isFinal bool)
	ChunksReplayed(n int)
	BytesReceived(n int)
	QueueDepth(n int)
}

type Nop struct{}

func (Nop) ConnectionOpened()                      {}
func (Nop) ConnectionClosed(string, time.Duration) {}
func (Nop) SessionRestarted()                      {}
func (Nop) ResultReceived(bool)                    {}
func (Nop) ChunksReplayed(int)                     {}
func (Nop) BytesReceived(int)                      {}
func (Nop) QueueDepth(int)                         {}
