package targets

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"proxsense/datatype"
	"proxsense/sensor"
)

const refreshKey = "targets"

// Clock abstracts time for recency stamps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Tracker is a sensor.Delegate that maintains Targets.
//
// Both registries are sync.Maps: creation is a LoadOrStore and updates lock
// only the affected Target. Refresh is serialized through singleflight and
// publishes an immutable list that Targets returns without locking.
type Tracker struct {
	sensor.NopDelegate

	log   zerolog.Logger
	clock Clock

	sequence    atomic.Uint64
	identifiers sync.Map // datatype.TargetIdentifier -> datatype.PayloadData
	payloads    sync.Map // payload key -> *Target

	refresh  singleflight.Group
	snapshot atomic.Pointer[[]Snapshot]
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the recency clock.
func WithClock(clock Clock) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTracker creates an empty tracker.
func NewTracker(log zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		log:   log.With().Str("component", "targets").Logger(),
		clock: realClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ sensor.Delegate = (*Tracker)(nil)

// DidDetect carries no identity and only logs.
func (t *Tracker) DidDetect(identifier datatype.TargetIdentifier) {
	t.log.Trace().Str("id", identifier.String()).Msg("detect")
}

// DidRead binds the identifier to payload and creates or refreshes its Target.
func (t *Tracker) DidRead(payload datatype.PayloadData, from datatype.TargetIdentifier) {
	if len(payload) == 0 {
		return
	}
	t.identifiers.Store(from, payload.Clone())
	if target, created := t.upsert(payload, from); !created {
		target.didRead(from, t.clock.Now())
	}
}

// DidShare treats every relayed payload like a read. Existing Targets keep
// their identifier since the relaying peer is not the payload's owner.
func (t *Tracker) DidShare(payloads []datatype.PayloadData, from datatype.TargetIdentifier) {
	for _, payload := range payloads {
		if len(payload) == 0 {
			continue
		}
		t.identifiers.Store(from, payload.Clone())
		if target, created := t.upsert(payload, from); !created {
			target.didRead("", t.clock.Now())
		}
	}
}

// DidMeasure attributes a proximity reading to the Target last read from the
// identifier. Readings from unresolved identifiers are dropped.
func (t *Tracker) DidMeasure(proximity datatype.Proximity, from datatype.TargetIdentifier) {
	value, ok := t.identifiers.Load(from)
	if !ok {
		return
	}
	target, ok := t.lookup(value.(datatype.PayloadData))
	if !ok {
		return
	}
	target.didMeasure(from, proximity, t.clock.Now())
}

// DidReceive treats the received bytes as a payload identity. Data for an
// unknown identity is dropped; receive never creates a Target.
func (t *Tracker) DidReceive(data datatype.ImmediateSendData, from datatype.TargetIdentifier) {
	payload := datatype.PayloadData(data.Data)
	target, ok := t.lookup(payload)
	if !ok {
		t.log.Debug().Str("id", from.String()).Msg("dropping receive for unknown payload")
		return
	}
	t.identifiers.Store(from, payload.Clone())
	target.didReceive(from, data, t.clock.Now())
}

func (t *Tracker) upsert(payload datatype.PayloadData, from datatype.TargetIdentifier) (*Target, bool) {
	if existing, ok := t.lookup(payload); ok {
		return existing, false
	}
	fresh := newTarget(payload, from, t.sequence.Add(1), t.clock.Now())
	actual, loaded := t.payloads.LoadOrStore(payload.Key(), fresh)
	if !loaded {
		t.log.Debug().Str("target", fresh.shortName).Str("id", from.String()).Msg("target created")
	}
	return actual.(*Target), !loaded
}

func (t *Tracker) lookup(payload datatype.PayloadData) (*Target, bool) {
	value, ok := t.payloads.Load(payload.Key())
	if !ok {
		return nil, false
	}
	return value.(*Target), true
}

// Lookup returns a snapshot of the Target for payload.
func (t *Tracker) Lookup(payload datatype.PayloadData) (Snapshot, bool) {
	target, ok := t.lookup(payload)
	if !ok {
		return Snapshot{}, false
	}
	return target.Snapshot(), true
}

// PayloadFor returns the payload last associated with identifier.
func (t *Tracker) PayloadFor(identifier datatype.TargetIdentifier) (datatype.PayloadData, bool) {
	value, ok := t.identifiers.Load(identifier)
	if !ok {
		return nil, false
	}
	return value.(datatype.PayloadData), true
}

// Len returns the number of Targets, before deduplication.
func (t *Tracker) Len() int {
	n := 0
	t.payloads.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Refresh rebuilds the deduplicated list and publishes it. Concurrent callers
// share one computation. The returned slice must not be modified.
func (t *Tracker) Refresh() []Snapshot {
	value, _, _ := t.refresh.Do(refreshKey, func() (any, error) {
		list := t.deduplicate()
		t.snapshot.Store(&list)
		return list, nil
	})
	return value.([]Snapshot)
}

// Targets returns the list published by the last Refresh. The returned
// slice must not be modified.
func (t *Tracker) Targets() []Snapshot {
	list := t.snapshot.Load()
	if list == nil {
		return nil
	}
	return *list
}

// Reset forgets every Target and identifier binding.
func (t *Tracker) Reset() {
	t.identifiers.Clear()
	t.payloads.Clear()
	empty := []Snapshot{}
	t.snapshot.Store(&empty)
}

// deduplicate keeps, for each short name, the most recently updated Target
// and orders the result by short name.
func (t *Tracker) deduplicate() []Snapshot {
	byShortName := make(map[string]Snapshot)
	t.payloads.Range(func(_, value any) bool {
		candidate := value.(*Target).Snapshot()
		current, ok := byShortName[candidate.ShortName]
		if !ok || candidate.supersedes(current) {
			byShortName[candidate.ShortName] = candidate
		}
		return true
	})

	out := make([]Snapshot, 0, len(byShortName))
	for _, snapshot := range byShortName {
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ShortName < out[j].ShortName
	})
	return out
}
