package audio

import (
	"io"

	"github.com/foxseedlab/speechrelay/internal/audio"
)

// RawSource treats the connection as a plain PCM byte stream preceded by a
// single preamble read.
type RawSource struct {
	conn        io.Reader
	headerBytes int
}

func NewRawSource(conn io.Reader, headerBytes int) audio.Source {
	return &RawSource{conn: conn, headerBytes: headerBytes}
}

func (s *RawSource) ReadHeader() ([]byte, error) {
	if s.headerBytes <= 0 {
		return nil, nil
	}
	buf := make([]byte, s.headerBytes)
	n, err := s.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

func (s *RawSource) Read(p []byte) (int, error) {
	return s.conn.Read(p)
}
