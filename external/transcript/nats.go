package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/speechrelay/internal/transcript"
	"github.com/nats-io/nats.go"
)

const natsConnectTimeout = 5 * time.Second

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every transcript event as JSON. Interim events are
// published too so subscribers can render live captions.
type NATSSink struct {
	pub     publisher
	subject string
}

func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("speechrelay"),
		nats.Timeout(natsConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	slog.Info("connected to NATS", "url", url)
	return conn, nil
}

func NewNATSSink(pub publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: subject}
}

func (s *NATSSink) Emit(event transcript.Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(s.subject+"."+string(event.Kind), b); err != nil {
		return fmt.Errorf("publish transcript event: %w", err)
	}
	return nil
}
