// Package targets resolves discovery events into one record per payload
// identity and produces a deduplicated, ordered view of them.
package targets

import (
	"sync"
	"time"

	"proxsense/datatype"
)

// Target aggregates what is known about one payload identity.
type Target struct {
	payload   datatype.PayloadData
	shortName string
	sequence  uint64
	createdAt time.Time

	mu            sync.RWMutex
	identifier    datatype.TargetIdentifier
	lastUpdatedAt time.Time
	proximity     *datatype.Proximity
	measuredAt    time.Time
	received      *datatype.ImmediateSendData
	receivedAt    time.Time
	reads         int
	measures      int
	receives      int
}

func newTarget(payload datatype.PayloadData, identifier datatype.TargetIdentifier, sequence uint64, now time.Time) *Target {
	return &Target{
		payload:       payload.Clone(),
		shortName:     payload.ShortName(),
		sequence:      sequence,
		createdAt:     now,
		identifier:    identifier,
		lastUpdatedAt: now,
		reads:         1,
	}
}

func (t *Target) didRead(identifier datatype.TargetIdentifier, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if identifier != "" {
		t.identifier = identifier
	}
	t.lastUpdatedAt = now
	t.reads++
}

func (t *Target) didMeasure(identifier datatype.TargetIdentifier, proximity datatype.Proximity, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.identifier = identifier
	t.proximity = &proximity
	t.measuredAt = now
	t.lastUpdatedAt = now
	t.measures++
}

func (t *Target) didReceive(identifier datatype.TargetIdentifier, data datatype.ImmediateSendData, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.identifier = identifier
	t.received = &datatype.ImmediateSendData{Data: data.Data.Clone()}
	t.receivedAt = now
	t.lastUpdatedAt = now
	t.receives++
}

// Snapshot is an immutable copy of a Target.
type Snapshot struct {
	Payload       datatype.PayloadData
	ShortName     string
	Identifier    datatype.TargetIdentifier
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	Proximity     *datatype.Proximity
	MeasuredAt    time.Time
	Received      *datatype.ImmediateSendData
	ReceivedAt    time.Time
	Reads         int
	Measures      int
	Receives      int
	// Sequence is the creation order, used to break recency ties.
	Sequence uint64
}

// Snapshot copies the target's current state.
func (t *Target) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Payload:       t.payload.Clone(),
		ShortName:     t.shortName,
		Identifier:    t.identifier,
		CreatedAt:     t.createdAt,
		LastUpdatedAt: t.lastUpdatedAt,
		MeasuredAt:    t.measuredAt,
		ReceivedAt:    t.receivedAt,
		Reads:         t.reads,
		Measures:      t.measures,
		Receives:      t.receives,
		Sequence:      t.sequence,
	}
	if t.proximity != nil {
		p := *t.proximity
		s.Proximity = &p
	}
	if t.received != nil {
		s.Received = &datatype.ImmediateSendData{Data: t.received.Data.Clone()}
	}
	return s
}

// supersedes reports whether s should represent its display group instead
// of other: later recency wins, ties go to the earlier-created target.
func (s Snapshot) supersedes(other Snapshot) bool {
	if !s.LastUpdatedAt.Equal(other.LastUpdatedAt) {
		return s.LastUpdatedAt.After(other.LastUpdatedAt)
	}
	return s.Sequence < other.Sequence
}
