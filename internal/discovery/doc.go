// Package discovery finds and advertises psu-bridge instances over mDNS.
//
// A bridge registers itself as a "_psulink._tcp" service. TXT records carry
// the device family ("protocol=dps150"), the WebSocket path ("path=/ws") and
// the bridge version.
//
// # Usage Example
//
//	bridges, err := discovery.ScanForBridges(3 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range bridges {
//	    fmt.Println(b, b.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Bridges must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
