// Package config provides user configuration management for psulink.
//
// A YAML file holds named connection profiles (which protocol, which port,
// which baud rate) and preferences shared by psuctl and psu-bridge.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/psulink/config.yaml or $HOME/.config/psulink/config.yaml
//   - macOS: $HOME/.config/psulink/config.yaml
//   - Windows: %LOCALAPPDATA%\psulink\config.yaml
//
// PSULINK_CONFIG overrides the location.
//
// # Example
//
//	version: 1
//	profiles:
//	  bench:
//	    protocol: dps150
//	    port: /dev/ttyACM0
//	    baud: 115200
//	  usb:
//	    protocol: dp100
//	    port: /dev/hidraw3
//	preferences:
//	  default_profile: bench
//	  poll_interval_ms: 1000
//	  bridge_addr: ":8150"
//	  advertise: true
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes are serialised by a mutex and are atomic (temp file + rename).
package config
