package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"

	"proxsense/ble"
	"proxsense/datatype"
	"proxsense/sensor"
)

const (
	// EventPeerUpserted is emitted when a peer is first registered.
	EventPeerUpserted EventType = "peer_upserted"
	// EventPeerRekeyed is emitted when a known peer shows up under a rotated identifier.
	EventPeerRekeyed EventType = "peer_rekeyed"
	// EventPeerRemoved is emitted when a peer has been silent past PeerStaleAfter.
	EventPeerRemoved EventType = "peer_removed"
)

var (
	errNotStarted = errors.New("bridge is not started")
	errStopped    = errors.New("bridge is stopped")
)

// EventType identifies registry changes.
type EventType string

// Event carries registry changes for consumers.
type Event struct {
	Type       EventType
	Identifier datatype.TargetIdentifier
	// Previous is the identifier replaced by a rekey.
	Previous datatype.TargetIdentifier
}

type refreshRequest struct {
	ctx  context.Context
	done chan error
}

// Bridge browses for advertisements and applies them to a ble.Registry.
//
// It is the registry's ble.Delegate and forwards device changes to a
// sensor.Delegate. Payloads become reads and signal strength becomes
// measurements. Relayed payloads and immediate-send data addressed to this
// device are forwarded straight from the advertisement.
type Bridge struct {
	cfg      Config
	log      zerolog.Logger
	browse   browseFunc
	registry *ble.Registry
	sink     sensor.Delegate
	self     func() datatype.TargetIdentifier
	pseudo   datatype.PseudoDeviceAddress
	// rekeyed is called after a device moves to a rotated identifier.
	rekeyed func(*ble.Device)

	delivered sync.Map // datatype.TargetIdentifier -> hex of the last send received

	events chan Event

	startOnce sync.Once
	stopOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refreshRequests chan refreshRequest
}

// NewBridge creates a bridge with config defaults applied.
func NewBridge(config Config, sink sensor.Delegate, log zerolog.Logger, opts ...ble.RegistryOption) (*Bridge, error) {
	cfg := config.withDefaults()
	if err := cfg.validateForScan(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = sensor.NopDelegate{}
	}

	browse := cfg.browseFn
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, err
		}
		browse = resolver.Browse
	}

	b := &Bridge{
		cfg:             cfg,
		log:             log.With().Str("component", "bridge").Logger(),
		browse:          browse,
		sink:            sink,
		self:            func() datatype.TargetIdentifier { return "" },
		rekeyed:         func(*ble.Device) {},
		pseudo:          PseudoAddressFor(cfg.SelfDeviceID),
		events:          make(chan Event, 128),
		refreshRequests: make(chan refreshRequest),
	}
	b.registry = ble.NewRegistry(b, log, opts...)
	return b, nil
}

// Registry exposes the devices the bridge maintains.
func (b *Bridge) Registry() *ble.Registry {
	return b.registry
}

// Start begins background browsing.
func (b *Bridge) Start() error {
	b.startOnce.Do(func() {
		b.ctx, b.cancel = context.WithCancel(context.Background())
		b.sink.DidUpdateState(sensor.StateOn)
		b.wg.Add(1)
		go b.loop()
	})
	return nil
}

// Stop stops browsing and closes the event channel.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		close(b.events)
		b.sink.DidUpdateState(sensor.StateOff)
	})
}

// Events provides asynchronous registry updates. Events are dropped when
// the buffer is full.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// Refresh triggers an immediate browse.
func (b *Bridge) Refresh(ctx context.Context) error {
	if b.ctx == nil {
		return errNotStarted
	}

	req := refreshRequest{
		ctx:  ctx,
		done: make(chan error, 1),
	}

	select {
	case b.refreshRequests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return errStopped
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return errStopped
	}
}

func (b *Bridge) loop() {
	defer b.wg.Done()

	if err := b.runScan(context.Background()); err != nil {
		b.log.Warn().Err(err).Msg("browse failed")
	}

	ticker := time.NewTicker(b.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.runScan(context.Background()); err != nil {
				b.log.Warn().Err(err).Msg("browse failed")
			}
		case req := <-b.refreshRequests:
			req.done <- b.runScan(req.ctx)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Bridge) runScan(requestCtx context.Context) error {
	scanCtx, cancel := context.WithTimeout(b.ctx, b.cfg.ScanTimeout)
	defer cancel()

	go func() {
		select {
		case <-requestCtx.Done():
			cancel()
		case <-scanCtx.Done():
		}
	}()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	collectorDone := make(chan struct{})
	started := time.Now()

	go func() {
		defer close(collectorDone)
		for {
			select {
			case <-scanCtx.Done():
				return
			case entry := <-entries:
				if entry == nil {
					continue
				}
				ad, ok := parseEntry(entry)
				if !ok || b.isSelf(ad) {
					continue
				}
				ad.RSSI, ad.HasRSSI = estimateRSSI(time.Since(started)), true
				b.Apply(ad)
			}
		}
	}()

	browseErr := b.browse(scanCtx, b.cfg.Service, b.cfg.Domain, entries)
	if browseErr != nil && !errors.Is(browseErr, context.DeadlineExceeded) && !errors.Is(browseErr, context.Canceled) {
		cancel()
		<-collectorDone
		return browseErr
	}

	<-scanCtx.Done()
	<-collectorDone

	for _, identifier := range b.registry.Evict(b.cfg.PeerStaleAfter) {
		b.delivered.Delete(identifier)
		b.emitEvent(Event{Type: EventPeerRemoved, Identifier: identifier})
	}
	return nil
}

func (b *Bridge) isSelf(ad Advertisement) bool {
	if ad.HasPseudo && ad.PseudoAddress == b.pseudo {
		return true
	}
	return ad.Identifier == b.self()
}

// Apply folds one advertisement into the registry.
//
// The device is resolved by identifier, then by pseudo address so that a
// rotated identifier keeps the peer's history, and is otherwise created.
// Ignored peers only have their discovery refreshed until the ignore
// window lapses. The payload is applied before the signal reading so the
// reading can be attributed to it.
func (b *Bridge) Apply(ad Advertisement) *ble.Device {
	device := b.resolve(ad)
	device.RegisterDiscovery()
	if device.ShouldIgnore() {
		return device
	}

	if ad.HasPseudo {
		device.SetPseudoAddress(ad.PseudoAddress)
	}
	if ad.Version != b.cfg.Version {
		b.log.Info().
			Str("id", ad.Identifier.String()).
			Int("version", ad.Version).
			Msg("ignoring peer with incompatible protocol version")
		device.IgnoreIndefinitely()
		return device
	}
	if !ad.Platform.Confirmed() {
		device.SetPlatform(ble.PlatformIgnore)
		return device
	}

	device.SetPlatform(ad.Platform)
	if ad.HasTxPower {
		device.SetTxPower(ad.TxPower)
	}
	if ad.Name != "" && ad.Name != device.DeviceName() {
		device.SetDeviceName(ad.Name)
	}
	if len(ad.Payload) > 0 {
		device.SetPayload(ad.Payload)
	}
	if ad.HasRSSI {
		device.SetRSSI(ad.RSSI)
	}
	if len(ad.Shared) > 0 {
		b.sink.DidShare(ad.Shared, device.Identifier())
	}
	if len(ad.Send) > 0 && ad.SendTo != "" && ad.SendTo == b.self() {
		b.deliver(device.Identifier(), ad.Send)
	}
	return device
}

// deliver forwards immediate-send data once per distinct value and sender.
func (b *Bridge) deliver(from datatype.TargetIdentifier, data datatype.Data) {
	key := data.Hex()
	if previous, loaded := b.delivered.Swap(from, key); loaded && previous.(string) == key {
		return
	}
	b.log.Debug().Str("id", from.String()).Int("bytes", len(data)).Msg("immediate send received")
	b.sink.DidReceive(datatype.ImmediateSendData{Data: data.Clone()}, from)
}

func (b *Bridge) resolve(ad Advertisement) *ble.Device {
	if device, ok := b.registry.Get(ad.Identifier); ok {
		return device
	}

	if ad.HasPseudo {
		if prior, ok := b.registry.FindByPseudoAddress(ad.PseudoAddress); ok {
			previous := prior.Identifier()
			if device, ok := b.registry.Rekey(previous, ad.Identifier, ad.Endpoint); ok {
				b.emitEvent(Event{Type: EventPeerRekeyed, Identifier: ad.Identifier, Previous: previous})
				b.rekeyed(device)
				return device
			}
		}
	}

	device, created := b.registry.GetOrCreate(ad.Identifier)
	if created {
		device.SetPeripheral(ad.Endpoint)
		b.emitEvent(Event{Type: EventPeerUpserted, Identifier: ad.Identifier})
	}
	return device
}

func (b *Bridge) emitEvent(event Event) {
	select {
	case b.events <- event:
	default:
	}
}

var _ ble.Delegate = (*Bridge)(nil)

// DeviceDidUpdate forwards device changes to the sensor delegate.
func (b *Bridge) DeviceDidUpdate(device *ble.Device, attribute ble.Attribute) {
	switch attribute {
	case ble.AttributeDiscovery:
		b.sink.DidDetect(device.Identifier())
	case ble.AttributePayload:
		if payload := device.Payload(); len(payload) > 0 {
			b.sink.DidRead(payload, device.Identifier())
		}
	case ble.AttributeRSSI:
		rssi, ok := device.RSSI()
		if !ok {
			return
		}
		b.sink.DidMeasure(datatype.Proximity{
			Unit:        datatype.ProximityUnitRSSI,
			Value:       float64(rssi),
			Calibration: device.Calibration(),
		}, device.Identifier())
	}
}
