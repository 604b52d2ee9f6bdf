// Command embedded-emulator emulates an embedded controller speaking the
// debug protocol, for testing debugger clients without hardware.
//
// The emulator serves a register set taken from a YAML configuration file
// (or the built-in demonstration set) over TCP or a serial port, streams
// synthetic channel data, and optionally records streamed values in
// InfluxDB and advertises itself over mDNS.
//
// Usage:
//
//	embedded-emulator [flags]
//
// Flags:
//
//	-config string        Configuration file path (default: built-in)
//	-env string           .env file with EMULATOR_* overrides (default ".env")
//	-transport string     Transport: tcp, serial (default from config)
//	-address string       TCP listen address (default from config)
//	-serial string        Serial port device (default from config)
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Write a protocol capture file
//	-discovery            Advertise the TCP transport over mDNS
//	-interactive          Run the operator console
//
// Examples:
//
//	# Serve the demonstration register set on :5000
//	embedded-emulator
//
//	# Serve a firmware register map on a serial port
//	embedded-emulator -config board.yaml -transport serial -serial /dev/ttyUSB0
//
//	# Debug logging, capture file and console
//	embedded-emulator -log-level debug -protocol-log session.elog -interactive
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/embedded-debugger/emulator-go/cmd/embedded-emulator/interactive"
	"github.com/embedded-debugger/emulator-go/pkg/config"
	"github.com/embedded-debugger/emulator-go/pkg/discovery"
	"github.com/embedded-debugger/emulator-go/pkg/emulator"
	"github.com/embedded-debugger/emulator-go/pkg/log"
	"github.com/embedded-debugger/emulator-go/pkg/recorder"
	"github.com/embedded-debugger/emulator-go/pkg/transport"
)

type flags struct {
	ConfigFile  string
	EnvFile     string
	Transport   string
	Address     string
	Serial      string
	LogLevel    string
	ProtocolLog string
	Discovery   bool
	Interactive bool
}

var opts flags

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path (default: built-in)")
	flag.StringVar(&opts.EnvFile, "env", ".env", ".env file with EMULATOR_* overrides")
	flag.StringVar(&opts.Transport, "transport", "", "Transport: tcp, serial (default from config)")
	flag.StringVar(&opts.Address, "address", "", "TCP listen address (default from config)")
	flag.StringVar(&opts.Serial, "serial", "", "Serial port device (default from config)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Write a protocol capture file")
	flag.BoolVar(&opts.Discovery, "discovery", false, "Advertise the TCP transport over mDNS")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Run the operator console")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, opts.Interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration: defaults or file, then .env and
// environment, then flags.
func loadConfig(f flags) (*config.Config, error) {
	if err := config.LoadDotEnv(f.EnvFile); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if f.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(f.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if f.Transport != "" {
		cfg.Transport.Type = f.Transport
	}
	if f.Address != "" {
		cfg.Transport.Address = f.Address
	}
	if f.Serial != "" {
		cfg.Transport.Serial.Port = f.Serial
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.ProtocolLog != "" {
		cfg.Log.ProtocolFile = f.ProtocolLog
	}
	if f.Discovery {
		cfg.Discovery.Enabled = true
	}
	return cfg, cfg.Validate()
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// switchWriter lets log output move to the console once it exists.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func run(cfg *config.Config, useConsole bool) error {
	out := &switchWriter{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	logger.Info("embedded emulator",
		"cpu", cfg.CpuName,
		"serial", cfg.SerialNumber,
		"protocol", cfg.ProtocolVersion.String(),
		"application", cfg.ApplicationVersion.String())

	protocolLogger, closeCapture, err := protocolLogger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCapture()

	store, err := cfg.NewStore()
	if err != nil {
		return err
	}

	tr, err := transport.DefaultRegistry().New(cfg.Transport.Type, transport.Options{
		Address: cfg.Transport.Address,
		Serial: transport.SerialOptions{
			Port:     cfg.Transport.Serial.Port,
			BaudRate: cfg.Transport.Serial.BaudRate,
			DataBits: cfg.Transport.Serial.DataBits,
			StopBits: cfg.Transport.Serial.StopBits,
			Parity:   cfg.Transport.Serial.Parity,
			Timeout:  cfg.Transport.Serial.Timeout,
		},
		Logger: protocolLogger,
		Slog:   logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ecfg := emulator.ConfigFrom(cfg)
	ecfg.Logger = logger
	ecfg.ProtocolLogger = protocolLogger

	if cfg.Influx.Enabled {
		rec, err := recorder.Dial(ctx, cfg.Influx, recorder.Options{
			Tags:   map[string]string{"serial": cfg.SerialNumber, "cpu": cfg.CpuName},
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer rec.Close()
		ecfg.Observer = rec
	}

	emu, err := emulator.New(store, ecfg, tr)
	if err != nil {
		return err
	}
	if err := emu.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := emu.Stop(); err != nil {
			logger.Warn("stopping emulator", "error", err)
		}
	}()

	if l, ok := tr.(transport.Listener); ok {
		logger.Info("listening", "address", l.Addr().String())
	}

	if cfg.Discovery.Enabled {
		adv, err := advertise(ctx, cfg, tr, logger)
		if err != nil {
			logger.Warn("mDNS advertisement failed", "error", err)
		} else if adv != nil {
			defer func() { _ = adv.Stop() }()
		}
	}

	var console *interactive.Console
	if useConsole {
		console, err = interactive.New(emu)
		if err != nil {
			return err
		}
		out.Set(console.Stdout())
	}

	var notifyOut io.Writer = os.Stdout
	if console != nil {
		notifyOut = console.Stdout()
	}
	go printNotifications(emu.Notifications(), notifyOut)

	if console != nil {
		console.Run(ctx, cancel)
	} else {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig.String())
		case <-ctx.Done():
		}
	}

	logger.Info("shutting down")
	return nil
}

// protocolLogger builds the capture chain: the capture file when one is
// configured, plus slog at debug level.
func protocolLogger(cfg *config.Config, logger *slog.Logger) (log.Logger, func(), error) {
	loggers := []log.Logger{log.NewSlogAdapter(logger)}
	closeFn := func() {}

	if cfg.Log.ProtocolFile != "" {
		fl, err := log.NewFileLogger(cfg.Log.ProtocolFile)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closeFn = func() {
			written, failed := fl.Stats()
			logger.Info("protocol capture closed", "file", cfg.Log.ProtocolFile, "events", written, "failed", failed)
			_ = fl.Close()
		}
	}
	return log.NewMultiLogger(loggers...), closeFn, nil
}

func advertise(ctx context.Context, cfg *config.Config, tr transport.Transport, logger *slog.Logger) (*discovery.Advertiser, error) {
	l, ok := tr.(transport.Listener)
	if !ok {
		logger.Info("mDNS discovery needs the tcp transport, skipping", "transport", tr.Name())
		return nil, nil
	}

	adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{Logger: logger})
	err := adv.Advertise(ctx, &discovery.ServiceInfo{
		InstanceName:    cfg.Discovery.Instance,
		Port:            discovery.PortFromAddress(l.Addr().String()),
		CpuName:         cfg.CpuName,
		SerialNumber:    cfg.SerialNumber,
		ProtocolVersion: cfg.ProtocolVersion.String(),
		AppVersion:      cfg.ApplicationVersion.String(),
	})
	if err != nil {
		return nil, err
	}
	return adv, nil
}

func printNotifications(ch <-chan emulator.Notification, w io.Writer) {
	for n := range ch {
		fmt.Fprintf(w, "[EVENT] %s\n", n)
	}
}
