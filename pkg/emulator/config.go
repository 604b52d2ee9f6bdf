package emulator

import "github.com/embedded-debugger/emulator-go/pkg/config"

// ConfigFrom derives the emulator settings from a loaded configuration.
// Loggers and the observer are left for the caller to set.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Identity: Identity{
			CpuName:            cfg.CpuName,
			SerialNumber:       cfg.SerialNumber,
			ProtocolVersion:    cfg.ProtocolVersion,
			ApplicationVersion: cfg.ApplicationVersion,
		},
		AutoRespond: cfg.Emulator.AutoRespond,
		MultiNode:   cfg.Emulator.MultiNode,
		NodeCount:   cfg.Emulator.NodeCount,
		EmitTraces:  cfg.Emulator.EmitTraces,
		Sampler: SamplerConfig{
			Interval:   cfg.Emulator.TickInterval,
			SineIDs:    cfg.RoleIDs(config.RoleSine),
			CounterIDs: cfg.RoleIDs(config.RoleCounter),
		},
		NotificationBuffer: cfg.Emulator.NotificationBuffer,
	}
}
