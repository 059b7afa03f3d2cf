package session

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net"
	"regexp"
	"sync"
	"time"

	"github.com/foxseedlab/speechrelay/internal/audio"
	"github.com/foxseedlab/speechrelay/internal/config"
	"github.com/foxseedlab/speechrelay/internal/metrics"
	"github.com/foxseedlab/speechrelay/internal/repository"
	"github.com/foxseedlab/speechrelay/internal/transcriber"
	"github.com/foxseedlab/speechrelay/internal/transcript"
	"github.com/foxseedlab/speechrelay/internal/webhook"
	"github.com/google/uuid"
)

const finalizeTimeout = 15 * time.Second

// Manager accepts client connections and runs one Relay per connection.
type Manager struct {
	cfg         *config.Config
	repo        repository.Repository
	transcriber transcriber.Transcriber
	sink        transcript.Sink
	webhook     webhook.Sender
	metrics     metrics.Recorder
	newSource   audio.SourceFactory
	keywords    *regexp.Regexp
	now         func() time.Time

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewManager(cfg *config.Config, repo repository.Repository, stt transcriber.Transcriber, sink transcript.Sink, wh webhook.Sender, rec metrics.Recorder, newSource audio.SourceFactory) *Manager {
	return &Manager{
		cfg:         cfg,
		repo:        repo,
		transcriber: stt,
		sink:        sink,
		webhook:     wh,
		metrics:     rec,
		newSource:   newSource,
		keywords:    keywordPattern(cfg.ExitKeywords),
		now:         time.Now,
		running:     make(map[string]context.CancelFunc),
	}
}

// HandleConnection serves conn until the relay closes it. It blocks for the
// lifetime of the connection. Cancelling ctx, or calling Shutdown, also
// releases a connection still waiting for its preamble.
func (m *Manager) HandleConnection(ctx context.Context, conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	key := uuid.NewString()
	m.register(key, cancel)
	defer func() {
		m.unregister(key)
	}()

	src := m.newSource(conn)
	stopClose := context.AfterFunc(relayCtx, func() {
		_ = conn.Close()
	})
	header, err := src.ReadHeader()
	if !stopClose() || err != nil {
		if relayCtx.Err() != nil {
			slog.Info("connection cancelled before preamble", "remote_addr", remoteAddr)
		} else {
			slog.Warn("failed to read connection preamble", "remote_addr", remoteAddr, "error", err)
		}
		_ = conn.Close()
		return
	}
	id := m.connectionID(header)
	m.rename(key, id)
	key = id
	slog.Info("preamble received", "connection_id", id, "remote_addr", remoteAddr, "header_bytes", len(header))
	slog.Debug("preamble bytes", "connection_id", id, "header", hex.EncodeToString(header))

	startedAt := m.now()
	record, err := m.repo.CreateConnection(relayCtx, repository.CreateConnectionInput{
		ID:         id,
		RemoteAddr: remoteAddr,
		StartedAt:  startedAt,
	})
	if err != nil {
		slog.Error("failed to record connection", "connection_id", id, "error", err)
	} else {
		slog.Debug("connection recorded", "connection_id", record.ID, "status", string(record.Status))
	}
	m.metrics.ConnectionOpened()

	relay := newRelay(relayConfig{
		connectionID: id,
		source:       src,
		conn:         conn,
		transcriber:  m.transcriber,
		sink:         m.sink,
		metrics:      m.metrics,
		repo:         m.repo,
		limit:        m.cfg.StreamingLimit(),
		chunkBytes:   m.cfg.ChunkBytes(),
		keywords:     m.keywords,
		now:          m.now,
	})
	reason := relay.Run(relayCtx)
	m.finalize(relay, remoteAddr, startedAt, reason)
}

func (m *Manager) connectionID(header []byte) string {
	if m.cfg.SocketFraming == config.SocketFramingAudioSocket && len(header) == 16 {
		if id, err := uuid.FromBytes(header); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

func (m *Manager) register(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[id] = cancel
}

func (m *Manager) rename(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.running[from]; ok {
		delete(m.running, from)
		m.running[to] = cancel
	}
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
}

// ActiveConnections returns the number of connections being served, including
// those still waiting for their preamble.
func (m *Manager) ActiveConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Shutdown cancels every connection being served. HandleConnection calls
// return once their sockets are released.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.running {
		slog.Info("cancelling relay", "connection_id", id)
		cancel()
	}
}

func (m *Manager) finalize(r *Relay, remoteAddr string, startedAt time.Time, reason CloseReason) {
	endedAt := m.now()
	id := r.cfg.connectionID
	restarts := r.Restarts()

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := m.repo.CompleteConnection(ctx, repository.CompleteConnectionInput{
		ID:           id,
		EndedAt:      endedAt,
		RestartCount: restarts,
		CloseReason:  string(reason),
	}); err != nil {
		slog.Error("failed to complete connection", "connection_id", id, "error", err)
	}

	if err := m.webhook.SendConnectionSummary(ctx, buildConnectionSummary(r, remoteAddr, startedAt, endedAt, reason)); err != nil {
		slog.Error("failed to send connection summary webhook", "connection_id", id, "error", err)
	}

	m.metrics.ConnectionClosed(string(reason), endedAt.Sub(startedAt))
	slog.Info("connection closed",
		"connection_id", id,
		"reason", string(reason),
		"detail", reason.Detail(),
		"restart_count", restarts,
		"final_count", r.finals,
		"interim_count", r.interims,
		"bytes_received", r.bytesReceived.Load(),
		"duration", endedAt.Sub(startedAt).String())
}

func buildConnectionSummary(r *Relay, remoteAddr string, startedAt, endedAt time.Time, reason CloseReason) webhook.ConnectionSummaryPayload {
	sessions := make([]webhook.ConnectionSummarySession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, webhook.ConnectionSummarySession{
			Index:            s.index,
			StartAt:          s.startedAt.UTC().Format(time.RFC3339),
			EndAt:            s.endedAt.UTC().Format(time.RFC3339),
			ReplayedChunks:   s.replayedChunks,
			BridgingOffsetMs: s.bridgingOffsetMs,
			ResultCount:      s.results,
		})
	}
	return webhook.ConnectionSummaryPayload{
		SchemaVersion:   webhook.ConnectionSummarySchemaVersion,
		ConnectionID:    r.cfg.connectionID,
		RemoteAddr:      remoteAddr,
		StartAt:         startedAt.UTC().Format(time.RFC3339),
		EndAt:           endedAt.UTC().Format(time.RFC3339),
		DurationSeconds: int64(endedAt.Sub(startedAt) / time.Second),
		RestartCount:    r.Restarts(),
		FinalCount:      r.finals,
		InterimCount:    r.interims,
		BytesReceived:   r.bytesReceived.Load(),
		CloseReason:     string(reason),
		CloseDetail:     reason.Detail(),
		Sessions:        sessions,
	}
}
