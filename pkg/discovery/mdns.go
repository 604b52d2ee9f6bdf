package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface (optional).
	Interface string

	// TTL overrides the record TTL (optional).
	TTL time.Duration

	Logger *slog.Logger
}

type server interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
}

// Advertiser publishes one emulator instance over mDNS.
type Advertiser struct {
	config   AdvertiserConfig
	register registerFunc
	logger   *slog.Logger

	mu     sync.Mutex
	server server
	info   *ServiceInfo
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Advertiser{config: config, register: zeroconfRegister, logger: logger}
}

// Advertise starts advertising info, replacing a previous advertisement.
func (a *Advertiser) Advertise(_ context.Context, info *ServiceInfo) error {
	if err := ValidateInstanceName(info.InstanceName); err != nil {
		return err
	}
	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	srv, err := a.register(info.InstanceName, ServiceType, Domain, port,
		TXTRecordsToStrings(EncodeTXT(info)), interfaces(a.config.Interface), opts...)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}
	a.server = srv
	copied := *info
	copied.Port = uint16(port)
	a.info = &copied
	a.logger.Info("advertising emulator", "instance", info.InstanceName, "service", ServiceType, "port", port)
	return nil
}

// Advertised returns the active advertisement, if any.
func (a *Advertiser) Advertised() (ServiceInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.info == nil {
		return ServiceInfo{}, false
	}
	return *a.info, true
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.Shutdown()
	a.server = nil
	a.info = nil
	return nil
}

// PortFromAddress extracts the port of a listen address such as ":5000".
// It returns DefaultPort when the address carries none.
func PortFromAddress(addr string) uint16 {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return DefaultPort
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil || n == 0 {
		return DefaultPort
	}
	return uint16(n)
}

// interfaces returns the network interfaces to use. nil means all.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface (optional).
	Interface string
}

// Browser finds emulators on the local network.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse streams emulators until ctx ends. Addresses of one instance seen
// on several interfaces are merged; each instance is emitted once.
func (b *Browser) Browse(ctx context.Context) (<-chan *Service, error) {
	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)
		seen := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToService(entry)
				if svc == nil {
					continue
				}
				if existing, found := seen[svc.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				seen[svc.InstanceName] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}
			case entry, ok := <-removed:
				if ok && entry != nil {
					delete(seen, entry.Instance)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// entryToService converts a zeroconf entry. Entries without the required
// TXT records are ignored.
func entryToService(entry *zeroconf.ServiceEntry) *Service {
	info, err := DecodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	info.InstanceName = entry.Instance
	info.Port = uint16(entry.Port)

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &Service{ServiceInfo: *info, Host: entry.HostName, Addresses: addrs}
}

func mergeAddresses(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, addr := range b {
		found := false
		for _, existing := range out {
			if existing == addr {
				found = true
				break
			}
		}
		if !found {
			out = append(out, addr)
		}
	}
	return out
}
