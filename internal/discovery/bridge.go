package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge represents a psu-bridge instance found on the network
type Bridge struct {
	// Instance is the advertised service instance name (e.g., "bench-left")
	Instance string

	// Hostname is the mDNS hostname (e.g., "labpi.local.")
	Hostname string

	// IP is the address the bridge answered from (IPv4 preferred)
	IP string

	// Port is the WebSocket listen port
	Port int

	// Protocol is the device family behind the bridge ("dps150" or "dp100")
	Protocol string

	// Metadata contains the remaining TXT record data
	// Common fields: "path=/ws", "model=DPS-150", "version=v0.3.0"
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	proto := b.Protocol
	if proto == "" {
		proto = "unknown"
	}
	return fmt.Sprintf("psu-bridge %s [%s] (%s) at %s", b.Instance, proto, b.Hostname, b.Addr())
}

// Addr returns host:port for dialing the bridge
func (b *Bridge) Addr() string {
	return net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// URL returns the WebSocket URL of the bridge's event stream
func (b *Bridge) URL() string {
	path := b.GetMetadata("path")
	if path == "" {
		path = DefaultPath
	}
	return fmt.Sprintf("ws://%s%s", b.Addr(), path)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
