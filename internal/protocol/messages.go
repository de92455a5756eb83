package protocol

import "time"

// SessionEvent reports generation session lifecycle on the bus.
type SessionEvent struct {
	State      string    `json:"state"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkTotal int       `json:"chunk_total"`
	Progress   float64   `json:"progress"`
	Outcome    string    `json:"outcome,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ItemEvent announces a persisted history item (without its audio payload).
type ItemEvent struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Voice      string    `json:"voice"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectSessionProgress = "narrata.session.progress"
	SubjectSessionDone     = "narrata.session.done"
	SubjectItemSaved       = "narrata.item.saved"
)
