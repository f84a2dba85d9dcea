package ble

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"proxsense/datatype"
)

// Registry owns the devices currently tracked, keyed by ephemeral identifier.
//
// Lookups and creation go through a sync.Map; only re-keying is serialized so
// that the remove-old/insert-new swap happens in one critical section.
type Registry struct {
	log      zerolog.Logger
	clock    Clock
	delegate Delegate

	devices sync.Map // datatype.TargetIdentifier -> *Device
	rekeyMu sync.Mutex
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the clock handed to created devices.
func WithClock(clock Clock) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRegistry creates an empty registry whose devices report to delegate.
func NewRegistry(delegate Delegate, log zerolog.Logger, opts ...RegistryOption) *Registry {
	if delegate == nil {
		delegate = nopDelegate{}
	}
	r := &Registry{
		log:      log.With().Str("component", "ble-registry").Logger(),
		clock:    realClock{},
		delegate: delegate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the device bound to identifier.
func (r *Registry) Get(identifier datatype.TargetIdentifier) (*Device, bool) {
	value, ok := r.devices.Load(identifier)
	if !ok {
		return nil, false
	}
	return value.(*Device), true
}

// GetOrCreate returns the device bound to identifier, creating it if absent.
// created reports whether this call inserted it.
func (r *Registry) GetOrCreate(identifier datatype.TargetIdentifier) (device *Device, created bool) {
	if existing, ok := r.Get(identifier); ok {
		return existing, false
	}
	fresh := NewDevice(identifier, r.delegate, r.clock)
	actual, loaded := r.devices.LoadOrStore(identifier, fresh)
	if !loaded {
		r.log.Debug().Str("id", identifier.String()).Msg("device created")
	}
	return actual.(*Device), !loaded
}

// FindByPseudoAddress returns a device carrying address, if any.
func (r *Registry) FindByPseudoAddress(address datatype.PseudoDeviceAddress) (*Device, bool) {
	var found *Device
	r.devices.Range(func(_, value any) bool {
		device := value.(*Device)
		if candidate, ok := device.PseudoAddress(); ok && candidate == address {
			found = device
			return false
		}
		return true
	})
	return found, found != nil
}

// Rekey moves the device bound to oldID under newID, carrying its state over
// via Reidentify. A device already bound to newID is replaced.
func (r *Registry) Rekey(oldID, newID datatype.TargetIdentifier, peripheral any) (*Device, bool) {
	r.rekeyMu.Lock()
	defer r.rekeyMu.Unlock()

	value, ok := r.devices.Load(oldID)
	if !ok {
		return nil, false
	}
	clone := value.(*Device).Reidentify(newID, peripheral)
	r.devices.Store(newID, clone)
	if oldID != newID {
		r.devices.CompareAndDelete(oldID, value)
	}

	r.log.Debug().
		Str("old_id", oldID.String()).
		Str("new_id", newID.String()).
		Msg("device re-identified")
	return clone, true
}

// Remove forgets the device bound to identifier.
func (r *Registry) Remove(identifier datatype.TargetIdentifier) bool {
	_, loaded := r.devices.LoadAndDelete(identifier)
	return loaded
}

// Devices returns the tracked devices ordered by identifier.
func (r *Registry) Devices() []*Device {
	out := make([]*Device, 0)
	r.devices.Range(func(_, value any) bool {
		out = append(out, value.(*Device))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identifier() < out[j].Identifier()
	})
	return out
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int {
	n := 0
	r.devices.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Evict removes devices that have not been updated for longer than
// staleAfter and returns their identifiers.
func (r *Registry) Evict(staleAfter time.Duration) []datatype.TargetIdentifier {
	var evicted []datatype.TargetIdentifier
	r.devices.Range(func(key, value any) bool {
		device := value.(*Device)
		if !device.TimeSinceLastUpdate().Exceeds(staleAfter) {
			return true
		}
		if r.devices.CompareAndDelete(key, value) {
			evicted = append(evicted, device.Identifier())
		}
		return true
	})
	if len(evicted) > 0 {
		sort.Slice(evicted, func(i, j int) bool { return evicted[i] < evicted[j] })
		r.log.Debug().Int("count", len(evicted)).Msg("evicted stale devices")
	}
	return evicted
}
