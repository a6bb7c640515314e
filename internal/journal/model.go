package journal

import "time"

type SummaryRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	SessionID   string    `gorm:"not null;index" json:"session_id"`
	Text        string    `gorm:"not null" json:"text"`
	DataEntries int       `json:"data_entries"`
	DirEntries  int       `json:"dir_entries"`
	Dropped     int       `gorm:"default:0" json:"dropped"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

type IntentRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"not null;index" json:"session_id"`
	Utterance string    `json:"utterance"`
	Kind      string    `gorm:"not null" json:"kind"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type SearchRecord struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"not null;index" json:"session_id"`
	Requested  string    `json:"requested"`
	Target     string    `json:"target,omitempty"`
	Status     string    `gorm:"not null;index" json:"status"`
	Frames     int       `json:"frames"`
	Region     string    `json:"region,omitempty"`
	Guidance   string    `json:"guidance,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

type AlertRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"not null;index" json:"session_id"`
	Recipient string    `json:"recipient"`
	Attempts  int       `json:"attempts"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
