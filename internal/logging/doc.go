// Package logging provides structured logging for psulink sessions, the
// bridge and the CLI.
//
// This package wraps a global zap logger with convenience functions. The
// codec packages (protocol, dps150, dp100) never log; sessions and the
// bridge do.
//
// # Log Levels
//
//   - Debug: frame hex dumps, skipped frames, decode misses
//   - Info: handshakes, bridge clients, captures
//   - Warn: dropped corrupt frames, client write failures
//   - Error: startup failures
//
// # Configuration
//
// Logging is silent unless PSULINK_LOG_LEVEL or --log-level is set:
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Frame Logging
//
//	logging.LogFrame("sent", "dps150", wire)
//	logging.LogFrame("received", "dp100", report)
//
// Logs go to stderr in console format so command output on stdout stays
// clean for pipes.
package logging
