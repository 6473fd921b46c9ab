// Package bridge shares one bench supply with any number of WebSocket
// clients.
//
// The bridge polls the device on a fixed period and broadcasts every
// decoded frame as a JSON Event. Clients send Commands back over the same
// socket:
//
//	{"id": "1", "tag": "V_SET", "value": 12.5}
//	{"id": "2", "tag": "BRIGHTNESS", "kind": "u8", "value": 8}
//	{"id": "3", "action": "get", "tag": "MODEL_NAME"}
//
// Values without a kind go through protocol.Coerce, so JSON numbers become
// 4-byte floats and JSON booleans become one byte.
//
// When a capture directory is configured every reading is appended to a
// capture-YYYYMMDD-HHMMSS.jsonl file for offline analysis. With Advertise
// set the bridge registers itself over mDNS (see package discovery).
package bridge
