package scene

import (
	"time"

	"github.com/eleven-am/scene-narrator/internal/detection"
)

// Entry is one timestamped line of a window log.
type Entry struct {
	At   time.Time
	Text string
}

func (e Entry) String() string {
	return e.At.Format("15:04:05") + ": " + e.Text
}

// SummaryTrigger carries copies of both logs at the moment the summary window closed.
type SummaryTrigger struct {
	At              time.Time
	DataLog         []Entry
	DirLog          []Entry
	PreviousSummary string
}

// Observation is the outcome of one Observe call.
type Observation struct {
	Summary      string
	Descriptions []detection.ObjectDescription

	DataFlushed bool
	DirFlushed  bool
	// DirErr is set when the directional narration failed this tick.
	DirErr error

	Trigger *SummaryTrigger
}

type Config struct {
	DataInterval    time.Duration
	DirInterval     time.Duration
	SummaryInterval time.Duration
	MaxLogEntries   int
}

func (c Config) withDefaults() Config {
	if c.DataInterval <= 0 {
		c.DataInterval = time.Second
	}
	if c.DirInterval <= 0 {
		c.DirInterval = 10 * time.Second
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = 100 * time.Second
	}
	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = 256
	}
	return c
}

// Snapshot is a read-only view of the aggregation state.
type Snapshot struct {
	DataLog          []Entry
	DirLog           []Entry
	LastDataFlush    time.Time
	LastDirFlush     time.Time
	LastSummaryFlush time.Time
	PreviousSummary  string
	LatestScene      string
	Dropped          int
}
