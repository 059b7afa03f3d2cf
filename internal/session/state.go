package session

import (
	"math"
	"sync"
	"time"

	"github.com/foxseedlab/speechrelay/internal/audio"
)

// State carries continuity bookkeeping for one connection across recognition
// session restarts. The relay owns it between sessions; during a session the
// chunk generator and the response consumer share it through its methods.
type State struct {
	mu sync.Mutex

	closed      bool
	closeReason CloseReason

	sessionStart time.Time
	restartCount int

	currentAudio  []audio.Chunk
	previousAudio []audio.Chunk

	lastResultEndMs        int64
	lastFinalEndMs         int64
	finalRequestEndMs      int64
	bridgingOffsetMs       int64
	lastTranscriptWasFinal bool
	isNewSession           bool

	// draining is set once the request side of the current session ended on
	// the limit, so the backend can flush results for audio it already has.
	draining bool
}

func NewState(now time.Time) *State {
	return &State{
		sessionStart: now,
		isNewSession: true,
	}
}

// Close marks the connection as finished. Only the first reason is kept.
func (s *State) Close(reason CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.closeReason = reason
}

func (s *State) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *State) CloseReason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeReason
}

func (s *State) RestartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartCount
}

func (s *State) BeginSession(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionStart = now
	s.draining = false
}

// StartDraining records that no more audio will be sent in this session.
func (s *State) StartDraining() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draining = true
}

// ExpireSession reports whether the session has run past limit and, if so,
// restarts the session clock at now. A draining session never expires here;
// it ends when the backend finishes flushing.
func (s *State) ExpireSession(now time.Time, limit time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining || now.Sub(s.sessionStart) <= limit {
		return false
	}
	s.sessionStart = now
	return true
}

func (s *State) SessionExpired(now time.Time, limit time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.sessionStart) > limit
}

// TakeReplay returns the tail of the previous session that must be resent
// before live audio. It yields chunks only on the first call after a restart.
func (s *State) TakeReplay(streamingLimitMs int64) []audio.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isNewSession {
		return nil
	}
	s.isNewSession = false
	if len(s.previousAudio) == 0 {
		return nil
	}
	plan, ok := planReplay(len(s.previousAudio), streamingLimitMs, s.finalRequestEndMs, s.bridgingOffsetMs)
	if !ok {
		return nil
	}
	s.bridgingOffsetMs = plan.bridgingOffsetMs
	return s.previousAudio[plan.skip:]
}

func (s *State) RecordPulled(c audio.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentAudio = append(s.currentAudio, c)
}

// RecordResult stores the end offset of a recognition result and returns its
// position on the connection-wide timeline.
func (s *State) RecordResult(endMs int64, isFinal bool, streamingLimitMs int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResultEndMs = endMs
	corrected := correctedTimeMs(endMs, s.bridgingOffsetMs, streamingLimitMs, s.restartCount)
	if isFinal {
		s.lastFinalEndMs = endMs
		s.lastTranscriptWasFinal = true
	} else {
		s.lastTranscriptWasFinal = false
	}
	return corrected
}

type sessionHandoff struct {
	sessionIndex      int
	forceFinal        bool
	bridgingOffsetMs  int64
	finalRequestEndMs int64
	previousChunks    int
}

// EndSession rotates per-session bookkeeping so the next session can bridge
// from the one that just ended.
func (s *State) EndSession() sessionHandoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResultEndMs > 0 {
		s.finalRequestEndMs = s.lastFinalEndMs
	}
	s.lastResultEndMs = 0
	s.previousAudio = s.currentAudio
	s.currentAudio = nil
	h := sessionHandoff{
		sessionIndex:      s.restartCount,
		forceFinal:        !s.lastTranscriptWasFinal,
		bridgingOffsetMs:  s.bridgingOffsetMs,
		finalRequestEndMs: s.finalRequestEndMs,
		previousChunks:    len(s.previousAudio),
	}
	s.restartCount++
	s.isNewSession = true
	return h
}

type replayPlan struct {
	skip             int
	bridgingOffsetMs int64
}

// planReplay decides how many leading chunks of the previous session the
// backend already acknowledged. Every chunk is assumed to cover an equal share
// of the streaming limit, which is only approximately true for a short final chunk.
func planReplay(previousChunks int, streamingLimitMs, finalRequestEndMs, bridgingOffsetMs int64) (replayPlan, bool) {
	if previousChunks <= 0 {
		return replayPlan{}, false
	}
	chunkMs := float64(streamingLimitMs) / float64(previousChunks)
	if chunkMs <= 0 {
		return replayPlan{}, false
	}
	if bridgingOffsetMs < 0 {
		bridgingOffsetMs = 0
	}
	if bridgingOffsetMs > finalRequestEndMs {
		bridgingOffsetMs = finalRequestEndMs
	}
	skip := int(math.RoundToEven(float64(finalRequestEndMs-bridgingOffsetMs) / chunkMs))
	if skip < 0 {
		skip = 0
	}
	if skip > previousChunks {
		skip = previousChunks
	}
	return replayPlan{
		skip:             skip,
		bridgingOffsetMs: int64(math.RoundToEven(float64(previousChunks-skip) * chunkMs)),
	}, true
}

func correctedTimeMs(resultEndMs, bridgingOffsetMs, streamingLimitMs int64, restartCount int) int64 {
	return resultEndMs - bridgingOffsetMs + streamingLimitMs*int64(restartCount)
}
