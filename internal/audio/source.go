package audio

import "io"

// Source yields the PCM payload of one client connection.
type Source interface {
	// ReadHeader consumes the connection preamble that precedes audio.
	ReadHeader() ([]byte, error)
	io.Reader
}

type SourceFactory func(conn io.ReadWriter) Source
