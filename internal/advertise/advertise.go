package advertise

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/esp32aq/internal/logging"
	"github.com/muurk/esp32aq/internal/version"
)

const (
	// ServiceType is the mDNS service type of the bridge API
	ServiceType = "_esp32aq._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultBrowseTimeout bounds Browse when the context has no deadline
	DefaultBrowseTimeout = 3 * time.Second
)

// register is swapped in tests; zeroconf.Register needs multicast sockets
var register = zeroconf.Register

// Announcer keeps the bridge service registered until Shutdown
type Announcer struct {
	server   *zeroconf.Server
	instance string
}

// Announce registers the bridge API listening on port under the given
// instance name. TXT records carry the bridge version and API path.
func Announce(instance string, port int) (*Announcer, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	server, err := register(instance, ServiceType, ServiceDomain, port, TextRecords(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Announcing bridge over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Announcer{server: server, instance: instance}, nil
}

// TextRecords returns the TXT records published with the service
func TextRecords() []string {
	return []string{
		"version=" + version.Version,
		"path=/api/devices",
	}
}

// Shutdown withdraws the announcement
func (a *Announcer) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	logging.Debug("Withdrew mDNS announcement", zap.String("instance", a.instance))
}

// Bridge is a bridge found on the network
type Bridge struct {
	Instance     string
	Hostname     string
	IP           string
	Port         int
	Metadata     map[string]string
	DiscoveredAt time.Time
}

// BaseURL returns the HTTP base URL of the bridge API
func (b *Bridge) BaseURL() string {
	if strings.Contains(b.IP, ":") {
		return fmt.Sprintf("http://[%s]:%d", b.IP, b.Port)
	}
	return fmt.Sprintf("http://%s:%d", b.IP, b.Port)
}

// Version returns the advertised bridge version, or "" when absent
func (b *Bridge) Version() string {
	return b.Metadata["version"]
}

// Browse lists bridges answering on the local network until ctx is done, or
// for DefaultBrowseTimeout when ctx has no deadline.
func Browse(ctx context.Context) ([]*Bridge, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultBrowseTimeout)
		defer cancel()
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		bridges []*Bridge
		seen    = make(map[string]bool)
	)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				b := parseServiceEntry(entry)
				if b == nil {
					continue
				}
				mu.Lock()
				if !seen[b.Instance] {
					seen[b.Instance] = true
					bridges = append(bridges, b)
				}
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return bridges, nil
}

// parseServiceEntry converts a resolved entry, or returns nil when it has no
// usable address
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	metadata := make(map[string]string, len(entry.Text))
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Bridge{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
