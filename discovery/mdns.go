// Package discovery carries device advertisements over mDNS on the local
// network and feeds them into the device registry.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"

	"proxsense/ble"
	"proxsense/datatype"
	"proxsense/payload"
	"proxsense/sensor"
)

const (
	// DefaultService is the mDNS service name without domain suffix.
	DefaultService = "_proxsense._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
	// DefaultPort is the port carried in the service record.
	DefaultPort = 9876
	// DefaultVersion is the TXT record protocol version.
	DefaultVersion = 1
	// DefaultScanInterval is the background browse interval.
	DefaultScanInterval = 10 * time.Second
	// DefaultScanTimeout bounds each browse.
	DefaultScanTimeout = 3 * time.Second
	// DefaultRotateInterval is how often the advertised identifier changes.
	DefaultRotateInterval = 15 * time.Minute
	// DefaultPeerStaleAfter is how long a silent peer stays registered.
	DefaultPeerStaleAfter = 2 * time.Minute
)

var (
	errSelfDeviceID   = errors.New("self device ID is required")
	errSupplier       = errors.New("payload supplier is required")
	errPlatform       = errors.New("advertised platform must be ios or android")
	errNotAdvertising = errors.New("broadcaster is not advertising")
	errUnknownPeer    = errors.New("unknown peer")
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
type textFunc func(server *zeroconf.Server, text []string)

// outboundFunc reports the immediate-send data to advertise, if any.
type outboundFunc func() (datatype.TargetIdentifier, datatype.ImmediateSendData, bool)

// Config controls the broadcaster and bridge.
type Config struct {
	Service        string
	Domain         string
	Port           int
	Version        int
	ScanInterval   time.Duration
	ScanTimeout    time.Duration
	RotateInterval time.Duration
	PeerStaleAfter time.Duration

	SelfDeviceID string
	DeviceName   string
	Platform     ble.Platform
	TxPower      datatype.TxPower
	Supplier     payload.Supplier

	registerFn registerFunc
	browseFn   browseFunc
	textFn     textFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Service == "" {
		out.Service = DefaultService
	}
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.Port <= 0 {
		out.Port = DefaultPort
	}
	if out.Version == 0 {
		out.Version = DefaultVersion
	}
	if out.ScanInterval <= 0 {
		out.ScanInterval = DefaultScanInterval
	}
	if out.ScanTimeout <= 0 {
		out.ScanTimeout = DefaultScanTimeout
	}
	if out.RotateInterval <= 0 {
		out.RotateInterval = DefaultRotateInterval
	}
	if out.PeerStaleAfter <= 0 {
		out.PeerStaleAfter = DefaultPeerStaleAfter
	}
	if out.registerFn == nil {
		out.registerFn = zeroconf.Register
	}
	if out.textFn == nil {
		out.textFn = (*zeroconf.Server).SetText
	}
	return out
}

func (c Config) validateForBroadcast() error {
	if strings.TrimSpace(c.SelfDeviceID) == "" {
		return errSelfDeviceID
	}
	if c.Supplier == nil {
		return errSupplier
	}
	if !c.Platform.Confirmed() {
		return errPlatform
	}
	return nil
}

func (c Config) validateForScan() error {
	if strings.TrimSpace(c.SelfDeviceID) == "" {
		return errSelfDeviceID
	}
	return nil
}

// PseudoAddressFor derives the continuity token advertised for a device ID.
// It stays fixed while the advertised identifier rotates.
func PseudoAddressFor(deviceID string) datatype.PseudoDeviceAddress {
	id, err := uuid.Parse(deviceID)
	if err != nil {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(deviceID))
	}
	address, _ := datatype.PseudoDeviceAddressFromBytes(id[10:])
	return address
}

// Broadcaster advertises local device presence via mDNS under an identifier
// that rotates every RotateInterval.
type Broadcaster struct {
	cfg    Config
	log    zerolog.Logger
	pseudo datatype.PseudoDeviceAddress

	// publishMu serializes record changes so TXT updates never race a rotation.
	publishMu  sync.Mutex
	mu         sync.RWMutex
	server     *zeroconf.Server
	identifier datatype.TargetIdentifier
	shared     []datatype.PayloadData
	outbound   outboundFunc

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewBroadcaster validates config. Nothing is advertised until Start.
func NewBroadcaster(config Config, log zerolog.Logger) (*Broadcaster, error) {
	cfg := config.withDefaults()
	if err := cfg.validateForBroadcast(); err != nil {
		return nil, err
	}
	return &Broadcaster{
		cfg:    cfg,
		log:    log.With().Str("component", "broadcaster").Logger(),
		pseudo: PseudoAddressFor(cfg.SelfDeviceID),
	}, nil
}

// Start registers the first advertisement and begins rotating it.
func (b *Broadcaster) Start() error {
	var err error
	b.startOnce.Do(func() {
		if err = b.Rotate(); err != nil {
			return
		}
		var ctx context.Context
		ctx, b.cancel = context.WithCancel(context.Background())
		b.wg.Add(1)
		go b.loop(ctx)
	})
	return err
}

func (b *Broadcaster) loop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.RotateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Rotate(); err != nil {
				b.log.Warn().Err(err).Msg("identifier rotation failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Rotate re-registers the advertisement under a fresh identifier. The new
// record is registered before the old one is withdrawn.
func (b *Broadcaster) Rotate() error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	identifier := datatype.NewTargetIdentifier()
	record := b.record(identifier)

	server, err := b.cfg.registerFn(instanceName(identifier), b.cfg.Service, b.cfg.Domain, b.cfg.Port, record.TXT(), nil)
	if err != nil {
		return fmt.Errorf("register mDNS service: %w", err)
	}

	b.mu.Lock()
	previous := b.server
	b.server = server
	b.identifier = identifier
	b.mu.Unlock()

	if previous != nil {
		previous.Shutdown()
	}
	b.log.Debug().Str("id", identifier.String()).Msg("advertising")
	return nil
}

// Publish re-announces the current record in place, picking up shared
// payloads and outbound data without rotating the identifier.
func (b *Broadcaster) Publish() error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.RLock()
	server, identifier := b.server, b.identifier
	b.mu.RUnlock()
	if identifier == "" {
		return errNotAdvertising
	}
	b.cfg.textFn(server, b.record(identifier).TXT())
	return nil
}

// Share relays third-party payloads in the advertisement. Only the first
// few are carried; an unchanged list is not re-announced.
func (b *Broadcaster) Share(payloads []datatype.PayloadData) error {
	if len(payloads) > maxSharedPayloads {
		payloads = payloads[:maxSharedPayloads]
	}
	shared := make([]datatype.PayloadData, 0, len(payloads))
	for _, p := range payloads {
		shared = append(shared, p.Clone())
	}

	b.mu.Lock()
	unchanged := samePayloads(b.shared, shared)
	b.shared = shared
	b.mu.Unlock()

	if unchanged {
		return nil
	}
	return b.Publish()
}

// Shared returns the payloads currently relayed.
func (b *Broadcaster) Shared() []datatype.PayloadData {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]datatype.PayloadData(nil), b.shared...)
}

func (b *Broadcaster) record(identifier datatype.TargetIdentifier) Advertisement {
	b.mu.RLock()
	shared := b.shared
	outbound := b.outbound
	b.mu.RUnlock()

	record := Advertisement{
		Identifier:    identifier,
		PseudoAddress: b.pseudo,
		HasPseudo:     true,
		Platform:      b.cfg.Platform,
		Version:       b.cfg.Version,
		TxPower:       b.cfg.TxPower,
		HasTxPower:    true,
		Name:          b.cfg.DeviceName,
		Payload:       b.cfg.Supplier.Payload(time.Now()),
		Shared:        shared,
	}
	if outbound != nil {
		if to, data, ok := outbound(); ok {
			record.SendTo = to
			record.Send = data.Data
		}
	}
	return record
}

func samePayloads(a, b []datatype.PayloadData) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Identifier returns the identifier currently advertised.
func (b *Broadcaster) Identifier() datatype.TargetIdentifier {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.identifier
}

// PseudoAddress returns the advertised continuity token.
func (b *Broadcaster) PseudoAddress() datatype.PseudoDeviceAddress {
	return b.pseudo
}

// Stop withdraws the advertisement.
func (b *Broadcaster) Stop() {
	if b == nil {
		return
	}
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()

		b.mu.Lock()
		server := b.server
		b.server = nil
		b.identifier = ""
		b.mu.Unlock()
		if server != nil {
			server.Shutdown()
		}
	})
}

func instanceName(identifier datatype.TargetIdentifier) string {
	id := identifier.String()
	if len(id) > 8 {
		id = id[:8]
	}
	return "proxsense-" + id
}

// Service coordinates broadcast and bridging.
type Service struct {
	Broadcaster *Broadcaster
	Bridge      *Bridge
}

// Start starts a broadcaster and a bridge using one config.
func Start(config Config, sink sensor.Delegate, log zerolog.Logger, opts ...ble.RegistryOption) (*Service, error) {
	cfg := config.withDefaults()

	broadcaster, err := NewBroadcaster(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := broadcaster.Start(); err != nil {
		return nil, err
	}

	bridge, err := NewBridge(cfg, sink, log, opts...)
	if err != nil {
		broadcaster.Stop()
		return nil, err
	}
	svc := &Service{
		Broadcaster: broadcaster,
		Bridge:      bridge,
	}
	bridge.self = broadcaster.Identifier
	bridge.rekeyed = svc.readdress
	broadcaster.mu.Lock()
	broadcaster.outbound = svc.outbound
	broadcaster.mu.Unlock()

	if err := bridge.Start(); err != nil {
		broadcaster.Stop()
		return nil, err
	}
	return svc, nil
}

// ImmediateSend queues data for the peer bound to identifier and advertises
// it addressed to that peer. A later send replaces any earlier one.
func (s *Service) ImmediateSend(data datatype.Data, to datatype.TargetIdentifier) error {
	device, ok := s.Bridge.Registry().Get(to)
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownPeer, to)
	}
	for _, other := range s.Bridge.Registry().Devices() {
		if other != device {
			other.ClearImmediateSendData()
		}
	}
	device.SetImmediateSendData(datatype.ImmediateSendData{Data: data.Clone()})
	if err := s.Broadcaster.Publish(); err != nil {
		device.ClearImmediateSendData()
		return err
	}
	return nil
}

// Share relays payloads and records them as shared with every known peer.
func (s *Service) Share(payloads []datatype.PayloadData) error {
	if err := s.Broadcaster.Share(payloads); err != nil {
		return err
	}
	shared := s.Broadcaster.Shared()
	for _, device := range s.Bridge.Registry().Devices() {
		if device.AddSharedPayloads(shared...) > 0 {
			device.RegisterWritePayloadSharing()
		}
	}
	return nil
}

func (s *Service) outbound() (datatype.TargetIdentifier, datatype.ImmediateSendData, bool) {
	for _, device := range s.Bridge.Registry().Devices() {
		if data, ok := device.ImmediateSendData(); ok {
			return device.Identifier(), data, true
		}
	}
	return "", datatype.ImmediateSendData{}, false
}

// readdress follows a queued send to the peer's rotated identifier.
func (s *Service) readdress(device *ble.Device) {
	if _, ok := device.ImmediateSendData(); !ok {
		return
	}
	if err := s.Broadcaster.Publish(); err != nil {
		s.Bridge.log.Warn().Err(err).Msg("re-announce after rekey failed")
	}
}

// Stop stops the bridge and broadcaster.
func (s *Service) Stop() {
	if s == nil {
		return
	}
	if s.Bridge != nil {
		s.Bridge.Stop()
	}
	if s.Broadcaster != nil {
		s.Broadcaster.Stop()
	}
}
