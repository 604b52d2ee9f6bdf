// Package log captures protocol traffic of the emulator as structured events.
//
// Capture is separate from operational logging. Components take a Logger
// and report what crossed each layer: raw chunks at the transport, decoded
// messages at the wire layer, and notifications and streaming or mode
// switches inside the emulator. Loggers must never block or fail the
// protocol path.
//
// A typical binary wires a capture file next to a debug-level slog view:
//
//	file, err := log.NewFileLogger("session.elog")
//	if err != nil {
//		return err
//	}
//	defer file.Close()
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(logger), file)
//
// Capture files are concatenated CBOR events with integer keys. Reader
// replays them with an optional Filter; cmd/emulator-log builds on it.
package log
