package session

import (
	"errors"
	"io"

	"github.com/foxseedlab/speechrelay/internal/audio"
)

// readSocket re-frames src into fixed-size chunks and pushes them onto queue
// until src fails or ends. A trailing partial chunk is flushed. The queue is
// closed on return so the generator stops waiting for audio.
func readSocket(src io.Reader, queue *audio.Queue, chunkBytes int, onRead func(n int)) error {
	defer queue.Close()
	for {
		buf := make([]byte, chunkBytes)
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			onRead(n)
			queue.Push(audio.Chunk(buf[:n]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
	}
}
