// Command emulator-log views and analyzes protocol capture files written by
// embedded-emulator, and browses the network for running emulators.
//
// Usage:
//
//	emulator-log <command> [flags] [file.elog]
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL or CSV
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//	browse   List emulators advertised over mDNS
//
// Examples:
//
//	# View only wire-layer events
//	emulator-log view -layer wire session.elog
//
//	# View WriteRegister traffic
//	emulator-log view -command W session.elog
//
//	# Keep only frames that failed validation
//	emulator-log filter -invalid -o bad.elog session.elog
//
//	# Find emulators on the local network
//	emulator-log browse -timeout 3s
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/embedded-debugger/emulator-go/cmd/emulator-log/commands"
	"github.com/embedded-debugger/emulator-go/pkg/discovery"
)

const usage = `emulator-log - Embedded Debug Protocol Capture Analyzer

Usage:
  emulator-log <command> [flags] [file.elog]

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL or CSV
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file
  browse   List emulators advertised over mDNS

Use "emulator-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "browse":
		runBrowse(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newFlagSet(name, synopsis, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "emulator-log %s - %s\n\nUsage:\n  emulator-log %s\n\nFlags:\n", name, summary, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func requireFile(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := newFlagSet("view", "view [flags] <file.elog>", "View capture file in human-readable format")
	layer := fs.String("layer", "", "Filter by layer (transport, wire, emulator)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, notification, state, error)")
	command := fs.String("command", "", "Filter by command (name, letter or code)")
	path := requireFile(fs, args)

	var filter commands.ViewFilter
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}
	if *command != "" {
		c, err := commands.ParseCommandFlag(*command)
		if err != nil {
			fail(err)
		}
		filter.Command = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "export [flags] <file.elog>", "Export capture file to JSONL or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := requireFile(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "filter [flags] <file.elog>", "Filter capture file and write to new file")
	var opts commands.FilterOptions
	fs.StringVar(&opts.Output, "o", "", "Output file (required)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, emulator)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, notification, state, error)")
	fs.StringVar(&opts.Command, "command", "", "Filter by command (name, letter or code)")
	fs.StringVar(&opts.Node, "node", "", "Filter by addressed node (e.g. 0x01)")
	fs.BoolVar(&opts.InvalidOnly, "invalid", false, "Keep only frames that failed validation")
	path := requireFile(fs, args)

	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, opts.Output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "stats <file.elog>", "Show statistics about the capture file")
	path := requireFile(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}

func runBrowse(args []string) {
	fs := newFlagSet("browse", "browse [flags]", "List emulators advertised over mDNS")
	iface := fs.String("interface", "", "Network interface to browse on (default: all)")
	timeout := fs.Duration("timeout", discovery.BrowseTimeout, "How long to wait for answers")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	browser := discovery.NewBrowser(discovery.BrowserConfig{Interface: *iface})
	n, err := commands.RunBrowse(ctx, browser, *timeout, os.Stdout)
	if err != nil {
		fail(err)
	}
	if n == 0 {
		fmt.Println("No emulators found")
	}
}
