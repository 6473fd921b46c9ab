package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muurk/psulink/internal/dps150"
)

// Protocol names accepted in a profile.
const (
	ProtocolDPS150 = "dps150"
	ProtocolDP100  = "dp100"
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                 `yaml:"version"`
	Profiles    map[string]*Profile `yaml:"profiles,omitempty"` // Keyed by profile name
	Preferences *Preferences        `yaml:"preferences,omitempty"`
}

// Profile describes how to reach one power supply.
type Profile struct {
	Protocol   string `yaml:"protocol"`             // dps150 or dp100
	Port       string `yaml:"port"`                 // /dev/ttyACM0, /dev/hidraw3 or tcp://host:port
	Baud       int    `yaml:"baud,omitempty"`       // DPS-150 line rate, announced with BAUD
	TimeoutMS  int    `yaml:"timeout_ms,omitempty"` // Read timeout; 0 uses the transport default
	Identifier uint8  `yaml:"identifier,omitempty"` // Expected DPS-150 IDENTIFIER, 0 to skip the check
	Nickname   string `yaml:"nickname,omitempty"`   // Display name
}

// Timeout returns the read timeout, falling back to def when unset.
func (p *Profile) Timeout(def time.Duration) time.Duration {
	if p.TimeoutMS <= 0 {
		return def
	}
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// BaudRate returns the configured line rate or the DPS-150 default.
func (p *Profile) BaudRate() int {
	if p.Baud == 0 {
		return dps150.DefaultBaudRate
	}
	return p.Baud
}

// Validate checks the profile for settings the device cannot use.
func (p *Profile) Validate() error {
	switch p.Protocol {
	case ProtocolDPS150:
		if p.Baud != 0 && dps150.BaudRateIndex(p.Baud) == 0 {
			return fmt.Errorf("baud rate %d not supported by the DPS-150 (supported: %v)", p.Baud, dps150.BaudRates())
		}
	case ProtocolDP100:
		if p.Baud != 0 {
			return fmt.Errorf("baud rate does not apply to the DP100 (USB HID)")
		}
	case "":
		return fmt.Errorf("protocol is required (%s or %s)", ProtocolDPS150, ProtocolDP100)
	default:
		return fmt.Errorf("unknown protocol %q (want %s or %s)", p.Protocol, ProtocolDPS150, ProtocolDP100)
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("port is required")
	}
	if p.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	return nil
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultProfile string `yaml:"default_profile,omitempty"` // Used when --profile is not given
	LogLevel       string `yaml:"log_level,omitempty"`       // debug, info, warn, error; empty is silent
	PollInterval   int    `yaml:"poll_interval_ms"`          // watch and bridge poll period
	BridgeAddr     string `yaml:"bridge_addr"`               // psu-bridge listen address
	CaptureDir     string `yaml:"capture_dir,omitempty"`     // JSONL frame captures; empty disables
	Advertise      bool   `yaml:"advertise"`                 // Announce the bridge over mDNS
}

// Poll returns the poll period.
func (p *Preferences) Poll() time.Duration {
	if p.PollInterval <= 0 {
		return time.Second
	}
	return time.Duration(p.PollInterval) * time.Millisecond
}

func defaultPreferences() *Preferences {
	return &Preferences{
		PollInterval: 1000,
		BridgeAddr:   ":8150",
		Advertise:    true,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Profiles:    make(map[string]*Profile),
		Preferences: defaultPreferences(),
	}
}

// GetProfile retrieves a profile by name. An empty name selects the
// default profile.
func (r *Registry) GetProfile(name string) (*Profile, error) {
	if name == "" && r.Preferences != nil {
		name = r.Preferences.DefaultProfile
	}
	if name == "" {
		return nil, fmt.Errorf("no profile given and no default_profile set")
	}
	p, ok := r.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found (known: %s)", name, strings.Join(r.ProfileNames(), ", "))
	}
	return p, nil
}

// SetProfile validates and stores a profile. The first profile added
// becomes the default.
func (r *Registry) SetProfile(name string, p *Profile) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	if r.Profiles == nil {
		r.Profiles = make(map[string]*Profile)
	}
	r.Profiles[name] = p
	if r.Preferences == nil {
		r.Preferences = defaultPreferences()
	}
	if r.Preferences.DefaultProfile == "" {
		r.Preferences.DefaultProfile = name
	}
	return nil
}

// RemoveProfile deletes a profile and clears the default if it pointed there.
func (r *Registry) RemoveProfile(name string) error {
	if _, ok := r.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(r.Profiles, name)
	if r.Preferences != nil && r.Preferences.DefaultProfile == name {
		r.Preferences.DefaultProfile = ""
	}
	return nil
}

// ProfileNames returns the profile names in sorted order.
func (r *Registry) ProfileNames() []string {
	names := make([]string, 0, len(r.Profiles))
	for n := range r.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
