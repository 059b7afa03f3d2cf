package webhook

import "context"

const ConnectionSummarySchemaVersion = "2026-10-01"

type ConnectionSummarySession struct {
	Index            int    `json:"index"`
	StartAt          string `json:"start_at"`
	EndAt            string `json:"end_at"`
	ReplayedChunks   int    `json:"replayed_chunks"`
	BridgingOffsetMs int64  `json:"bridging_offset_ms"`
	ResultCount      int    `json:"result_count"`
}

type ConnectionSummaryPayload struct {
	SchemaVersion   string                     `json:"schema_version"`
	ConnectionID    string                     `json:"connection_id"`
	RemoteAddr      string                     `json:"remote_addr"`
	StartAt         string                     `json:"start_at"`
	EndAt           string                     `json:"end_at"`
	DurationSeconds int64                      `json:"duration_seconds"`
	RestartCount    int                        `json:"restart_count"`
	FinalCount      int                        `json:"final_count"`
	InterimCount    int                        `json:"interim_count"`
	BytesReceived   int64                      `json:"bytes_received"`
	CloseReason     string                     `json:"close_reason"`
	CloseDetail     string                     `json:"close_detail"`
	Sessions        []ConnectionSummarySession `json:"sessions"`
}

type Sender interface {
	SendConnectionSummary(ctx context.Context, payload ConnectionSummaryPayload) error
}
