package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/embedded-debugger/emulator-go/pkg/log"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

var baseTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

const testConnID = "abc12345-6789-0123-4567-890abcdef012"

func sampleEvents() []log.Event {
	processing := 250 * time.Microsecond
	reg := uint32(2)
	return []log.Event{
		{
			Timestamp:    baseTime,
			ConnectionID: testConnID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryMessage,
			Transport:    "tcp",
			RemoteAddr:   "127.0.0.1:50000",
			Frame:        &log.FrameEvent{Size: 6, Data: []byte{0x55, 0x01, 0x07, 0x56, 0x00, 0xAA}},
		},
		{
			Timestamp:    baseTime.Add(time.Millisecond),
			ConnectionID: testConnID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Message:      &log.MessageEvent{ControllerID: 0x01, MsgID: 7, Command: wire.CmdGetVersion},
		},
		{
			Timestamp:    baseTime.Add(2 * time.Millisecond),
			ConnectionID: testConnID,
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Message: &log.MessageEvent{
				ControllerID:   0x01,
				MsgID:          7,
				Command:        wire.CmdGetVersion,
				Data:           []byte{0x00, 0x07, 0x00, 0x00},
				ProcessingTime: &processing,
			},
		},
		{
			Timestamp:    baseTime.Add(3 * time.Millisecond),
			ConnectionID: testConnID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Message:      &log.MessageEvent{ControllerID: 0x02, MsgID: 9, Command: wire.CmdWriteRegister, Invalid: true},
		},
		{
			Timestamp: baseTime.Add(4 * time.Millisecond),
			Direction: log.DirectionIn,
			Layer:     log.LayerEmulator,
			Category:  log.CategoryNotification,
			Notification: &log.NotificationEvent{
				Kind:       log.NotificationWrite,
				RegisterID: &reg,
			},
		},
		{
			Timestamp: baseTime.Add(5 * time.Millisecond),
			Layer:     log.LayerEmulator,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityStreaming,
				OldState: "STOPPED",
				NewState: "RUNNING",
			},
		},
		{
			Timestamp: baseTime.Add(6 * time.Millisecond),
			Layer:     log.LayerWire,
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Layer: log.LayerWire, Message: "crc mismatch"},
		},
	}
}

func writeCapture(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.elog")
	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}
