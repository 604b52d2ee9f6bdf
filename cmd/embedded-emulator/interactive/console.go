// Package interactive provides the operator console of embedded-emulator.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/embedded-debugger/emulator-go/pkg/register"
)

// Controller is the part of the emulator the console drives.
type Controller interface {
	Store() *register.Store

	AutoRespond() bool
	SetAutoRespond(on bool)
	MultiNode() bool
	SetMultiNode(on bool)
	NodeCount() int
	SetNodeCount(n int) error
	SetEmitTraces(on bool)

	Streaming() bool
	StartStreaming()
	StopStreaming()

	ResetClock()
	Elapsed() time.Duration
	DroppedNotifications() uint64
}

// errQuit is returned by Execute for the quit command.
var errQuit = errors.New("quit")

// Console handles interactive mode.
type Console struct {
	ctl    Controller
	rl     *readline.Instance
	out    io.Writer
	traces bool
}

// New creates a console reading from the terminal.
func New(ctl Controller) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "emulator> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{ctl: ctl, rl: rl, out: rl.Stdout()}, nil
}

// newWithWriter creates a console without a terminal, for tests.
func newWithWriter(ctl Controller, out io.Writer) *Console {
	return &Console{ctl: ctl, out: out}
}

func completer() *readline.PrefixCompleter {
	onOff := []readline.PrefixCompleterInterface{readline.PcItem("on"), readline.PcItem("off")}
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("status"),
		readline.PcItem("regs"),
		readline.PcItem("read"),
		readline.PcItem("write"),
		readline.PcItem("start"),
		readline.PcItem("stop"),
		readline.PcItem("auto", onOff...),
		readline.PcItem("multi", onOff...),
		readline.PcItem("traces", onOff...),
		readline.PcItem("nodes"),
		readline.PcItem("reset"),
		readline.PcItem("quit"),
	)
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use it for log and notification output.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop. It calls cancel when the
// operator quits or closes the input.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if err := c.Execute(line); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Fprintln(c.out, "Exiting...")
				cancel()
				return
			}
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

// Execute runs one command line.
func (c *Console) Execute(line string) error {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		c.cmdStatus()
	case "regs", "ls":
		c.cmdRegs()
	case "read", "r":
		return c.cmdRead(args)
	case "write", "w":
		return c.cmdWrite(args)
	case "start":
		c.ctl.StartStreaming()
		fmt.Fprintln(c.out, "Streaming started")
	case "stop":
		c.ctl.StopStreaming()
		fmt.Fprintln(c.out, "Streaming stopped")
	case "auto":
		return c.toggle(args, c.ctl.AutoRespond(), c.ctl.SetAutoRespond, "Auto-respond")
	case "multi":
		return c.toggle(args, c.ctl.MultiNode(), c.ctl.SetMultiNode, "Multi-node")
	case "traces":
		return c.toggle(args, c.traces, func(on bool) {
			c.traces = on
			c.ctl.SetEmitTraces(on)
		}, "Traces")
	case "nodes":
		return c.cmdNodes(args)
	case "reset":
		c.ctl.ResetClock()
		fmt.Fprintln(c.out, "Clock reset")
	case "quit", "exit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	return nil
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Embedded Emulator Commands:
  Registers:
    regs                  - List registers and channel bindings
    read <id|name>        - Show a register value
    write <id|name> <val> - Set a register value (decimal, 0x hex, true/false)

  Streaming:
    start                 - Start channel streaming
    stop                  - Stop channel streaming
    reset                 - Reset the timestamp clock

  Modes:
    auto on|off           - Answer requests automatically
    multi on|off          - Address channel data to every node
    nodes <n>             - Set the number of emulated nodes
    traces on|off         - Emit dispatcher trace messages

  General:
    status                - Show emulator status
    help                  - Show this help
    quit                  - Exit emulator`)
}

func (c *Console) cmdStatus() {
	fmt.Fprintf(c.out, "Streaming:     %t\n", c.ctl.Streaming())
	fmt.Fprintf(c.out, "Auto-respond:  %t\n", c.ctl.AutoRespond())
	fmt.Fprintf(c.out, "Multi-node:    %t\n", c.ctl.MultiNode())
	fmt.Fprintf(c.out, "Nodes:         %d\n", c.ctl.NodeCount())
	fmt.Fprintf(c.out, "Elapsed:       %s\n", c.ctl.Elapsed().Round(time.Millisecond))
	if d := c.ctl.DroppedNotifications(); d > 0 {
		fmt.Fprintf(c.out, "Dropped notifications: %d\n", d)
	}
}

func (c *Console) cmdRegs() {
	regs := c.ctl.Store().All()
	fmt.Fprintf(c.out, "%4s  %-16s %-8s %8s %4s %-9s %s\n", "ID", "NAME", "TYPE", "OFFSET", "SIZE", "ACCESS", "CHANNEL")
	for _, r := range regs {
		ch := "-"
		if n, ok := r.Channel(); ok {
			ch = fmt.Sprintf("%d (%s)", n, r.Mode())
		}
		fmt.Fprintf(c.out, "%4d  %-16s %-8s %#8x %4d %-9s %s\n",
			r.ID, r.FullName, r.Type, r.Offset, r.Size, r.Access, ch)
	}
}

func (c *Console) lookup(key string) (*register.Register, error) {
	store := c.ctl.Store()
	if id, err := strconv.ParseUint(key, 10, 32); err == nil {
		if r, ok := store.ByID(uint32(id)); ok {
			return r, nil
		}
	}
	if r, ok := store.ByName(key); ok {
		return r, nil
	}
	return nil, fmt.Errorf("no register %q", key)
}

func (c *Console) cmdRead(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: read <id|name>")
	}
	r, err := c.lookup(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s = %s\n", r.FullName, register.FormatValue(r.Type, r.Value()))
	return nil
}

func (c *Console) cmdWrite(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: write <id|name> <value>")
	}
	r, err := c.lookup(args[0])
	if err != nil {
		return err
	}
	v, err := register.ParseValue(r.Type, r.Size, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if err := r.SetValue(v); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s = %s\n", r.FullName, register.FormatValue(r.Type, r.Value()))
	return nil
}

func (c *Console) cmdNodes(args []string) error {
	if len(args) < 1 {
		fmt.Fprintf(c.out, "Nodes: %d\n", c.ctl.NodeCount())
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid node count %q", args[0])
	}
	if err := c.ctl.SetNodeCount(n); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Nodes: %d\n", n)
	return nil
}

func (c *Console) toggle(args []string, current bool, set func(bool), label string) error {
	next := !current
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			next = true
		case "off", "false", "0":
			next = false
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
	}
	set(next)
	state := "off"
	if next {
		state = "on"
	}
	fmt.Fprintf(c.out, "%s %s\n", label, state)
	return nil
}
