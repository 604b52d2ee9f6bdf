package emulator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/embedded-debugger/emulator-go/pkg/transport/mocks"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

func TestStartReportsOpenFailure(t *testing.T) {
	tr := mocks.NewMockTransport(t)
	tr.On("OnReceive", mock.Anything).Return()
	tr.On("OnError", mock.Anything).Return()
	tr.On("Name").Return("mock").Maybe()
	errBusy := errors.New("port busy")
	tr.On("Open", mock.Anything).Return(errBusy)

	emu, err := New(newTestStore(t), Config{AutoRespond: true}, tr)
	require.NoError(t, err)

	err = emu.Start(context.Background())
	assert.ErrorIs(t, err, errBusy)
}

func TestSendFailuresAreReportedAndSkipped(t *testing.T) {
	tr := mocks.NewMockTransport(t)
	tr.On("OnReceive", mock.Anything).Return()
	tr.On("OnError", mock.Anything).Return()
	tr.On("Name").Return("mock").Maybe()
	tr.On("Open", mock.Anything).Return(nil)
	tr.On("Close").Return(nil)
	tr.On("Send", mock.Anything).Return(errors.New("link down"))

	events := &eventRecorder{}
	emu, err := New(newTestStore(t), Config{
		Identity:       testIdentity,
		AutoRespond:    true,
		NodeCount:      2,
		ProtocolLogger: events,
	}, tr)
	require.NoError(t, err)
	require.NoError(t, emu.Start(context.Background()))
	defer func() { _ = emu.Stop() }()

	emu.HandleBytes(wire.Encode(wire.NewMessage(wire.ControllerBroadcast, 5, wire.CmdGetVersion, nil)))

	// Two node replies plus the primary reply, each attempted despite failures.
	tr.AssertNumberOfCalls(t, "Send", 3)

	events.mu.Lock()
	defer events.mu.Unlock()
	errorsLogged := 0
	for _, e := range events.events {
		if e.Error != nil {
			errorsLogged++
			assert.Equal(t, "link down", e.Error.Message)
		}
	}
	assert.Equal(t, 3, errorsLogged)
}
