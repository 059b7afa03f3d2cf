package audio

import (
	"fmt"
	"io"

	"github.com/CyCoreSystems/audiosocket"
	"github.com/foxseedlab/speechrelay/internal/audio"
)

// AudioSocketSource reads Asterisk AudioSocket frames and exposes the signed
// linear payload as a byte stream. A hangup frame ends the stream.
type AudioSocketSource struct {
	conn    io.Reader
	pending []byte
	done    bool
}

func NewAudioSocketSource(conn io.Reader) audio.Source {
	return &AudioSocketSource{conn: conn}
}

func (s *AudioSocketSource) ReadHeader() ([]byte, error) {
	id, err := audiosocket.GetID(s.conn)
	if err != nil {
		return nil, fmt.Errorf("read audiosocket id: %w", err)
	}
	return id[:], nil
}

func (s *AudioSocketSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.done {
			return 0, io.EOF
		}
		msg, err := audiosocket.NextMessage(s.conn)
		if err != nil {
			return 0, err
		}
		switch msg.Kind() {
		case audiosocket.KindSlin:
			s.pending = msg.Payload()
		case audiosocket.KindHangup:
			s.done = true
		case audiosocket.KindError:
			return 0, fmt.Errorf("audiosocket error frame: code %d", msg.ErrorCode())
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}
