package interactive

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

type fakeController struct {
	store     *register.Store
	auto      bool
	multi     bool
	nodes     int
	traces    bool
	streaming bool
	resets    int
	dropped   uint64
	nodeErr   error
}

func (f *fakeController) Store() *register.Store       { return f.store }
func (f *fakeController) AutoRespond() bool            { return f.auto }
func (f *fakeController) SetAutoRespond(on bool)       { f.auto = on }
func (f *fakeController) MultiNode() bool              { return f.multi }
func (f *fakeController) SetMultiNode(on bool)         { f.multi = on }
func (f *fakeController) NodeCount() int               { return f.nodes }
func (f *fakeController) SetEmitTraces(on bool)        { f.traces = on }
func (f *fakeController) Streaming() bool              { return f.streaming }
func (f *fakeController) StartStreaming()              { f.streaming = true }
func (f *fakeController) StopStreaming()               { f.streaming = false }
func (f *fakeController) ResetClock()                  { f.resets++ }
func (f *fakeController) Elapsed() time.Duration       { return 1500 * time.Millisecond }
func (f *fakeController) DroppedNotifications() uint64 { return f.dropped }

func (f *fakeController) SetNodeCount(n int) error {
	if f.nodeErr != nil {
		return f.nodeErr
	}
	f.nodes = n
	return nil
}

func newTestConsole(t *testing.T) (*Console, *fakeController, *bytes.Buffer) {
	t.Helper()
	ch := uint8(0)
	store, err := register.NewStore(
		register.Definition{
			Descriptor: register.Descriptor{
				ID: 1, Name: "Sine", FullName: "Sine", Size: 1,
				Type: register.TypeUint8, Access: wire.AccessRead,
			},
			Channel: &ch,
			Mode:    wire.ChannelOnChange,
		},
		register.Definition{
			Descriptor: register.Descriptor{
				ID: 3, Name: "Gain", FullName: "Gain", Offset: 0x12, Size: 2,
				Type: register.TypeUint16, Access: wire.AccessReadWrite,
			},
			Initial: []byte{100, 0},
		},
	)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctl := &fakeController{store: store, nodes: 1, auto: true}
	var out bytes.Buffer
	return newWithWriter(ctl, &out), ctl, &out
}

func TestExecuteStatus(t *testing.T) {
	c, ctl, out := newTestConsole(t)
	ctl.dropped = 3

	if err := c.Execute("status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Streaming:     false", "Auto-respond:  true", "Nodes:         1", "Elapsed:       1.5s", "Dropped notifications: 3"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestExecuteRegs(t *testing.T) {
	c, _, out := newTestConsole(t)

	if err := c.Execute("regs"); err != nil {
		t.Fatalf("regs: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got:\n%s", out.String())
	}
	if !strings.Contains(lines[1], "Sine") || !strings.Contains(lines[1], "0 (") {
		t.Errorf("expected bound channel on Sine row: %q", lines[1])
	}
	if !strings.Contains(lines[2], "0x12") || !strings.Contains(lines[2], "readwrite") {
		t.Errorf("unexpected Gain row: %q", lines[2])
	}
}

func TestExecuteReadWrite(t *testing.T) {
	c, ctl, out := newTestConsole(t)

	if err := c.Execute("read Gain"); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(out.String(), "Gain = 100") {
		t.Errorf("unexpected read output: %s", out.String())
	}

	out.Reset()
	if err := c.Execute("write 3 0x1F4"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(out.String(), "Gain = 500") {
		t.Errorf("unexpected write output: %s", out.String())
	}
	r, _ := ctl.store.ByID(3)
	if got := r.Decoded(); got != uint16(500) {
		t.Errorf("Gain = %v, want 500", got)
	}
}

func TestExecuteReadWriteErrors(t *testing.T) {
	c, _, _ := newTestConsole(t)

	for _, line := range []string{
		"read",
		"read Missing",
		"write Gain",
		"write Gain banana",
		"write 3 70000",
	} {
		if err := c.Execute(line); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

func TestExecuteModes(t *testing.T) {
	c, ctl, _ := newTestConsole(t)

	steps := []struct {
		line  string
		check func() bool
	}{
		{"start", func() bool { return ctl.streaming }},
		{"stop", func() bool { return !ctl.streaming }},
		{"auto off", func() bool { return !ctl.auto }},
		{"auto", func() bool { return ctl.auto }},
		{"multi on", func() bool { return ctl.multi }},
		{"traces on", func() bool { return ctl.traces }},
		{"traces", func() bool { return !ctl.traces }},
		{"nodes 4", func() bool { return ctl.nodes == 4 }},
		{"reset", func() bool { return ctl.resets == 1 }},
	}
	for _, s := range steps {
		if err := c.Execute(s.line); err != nil {
			t.Fatalf("%s: %v", s.line, err)
		}
		if !s.check() {
			t.Errorf("%s: state not applied: %+v", s.line, ctl)
		}
	}
}

func TestExecuteModeErrors(t *testing.T) {
	c, ctl, _ := newTestConsole(t)

	if err := c.Execute("auto maybe"); err == nil {
		t.Error("expected error for bad toggle argument")
	}
	if err := c.Execute("nodes many"); err == nil {
		t.Error("expected error for bad node count")
	}
	ctl.nodeErr = errors.New("node count out of range")
	if err := c.Execute("nodes 300"); err == nil {
		t.Error("expected controller error to propagate")
	}
}

func TestExecuteQuitAndUnknown(t *testing.T) {
	c, _, _ := newTestConsole(t)

	if err := c.Execute("quit"); !errors.Is(err, errQuit) {
		t.Errorf("quit returned %v", err)
	}
	if err := c.Execute("frobnicate"); err == nil {
		t.Error("expected error for unknown command")
	}
	if err := c.Execute("   "); err != nil {
		t.Errorf("blank line returned %v", err)
	}
}
