// Package config loads the configuration of an emulated controller.
//
// A configuration file is YAML. It carries the controller identity (CPU
// name, serial number, protocol and application versions), the register
// set, and the runtime sections used by the emulator binary: emulator
// behaviour, transport, logging, InfluxDB recording and mDNS discovery.
//
// Values can be overridden from the environment using the EMULATOR_ prefix,
// optionally loaded from .env files first:
//
//	_ = config.LoadDotEnv(".env")
//	cfg, err := config.Load("controller.yaml")
//	if err != nil { ... }
//	if err := config.ApplyEnv(cfg); err != nil { ... }
//
// Default returns a built-in demonstration controller with a sine register
// and one counter register per supported integer width.
package config
