package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EMULATOR_"

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from EMULATOR_* environment
// variables and validates the result.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, os.LookupEnv)
}

type envField struct {
	name  string
	apply func(string) error
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	fields := []envField{
		{"CPU_NAME", setString(&cfg.CpuName)},
		{"SERIAL_NUMBER", setString(&cfg.SerialNumber)},
		{"AUTO_RESPOND", setBool(&cfg.Emulator.AutoRespond)},
		{"MULTI_NODE", setBool(&cfg.Emulator.MultiNode)},
		{"NODE_COUNT", setInt(&cfg.Emulator.NodeCount)},
		{"TICK_INTERVAL", setDuration(&cfg.Emulator.TickInterval)},
		{"EMIT_TRACES", setBool(&cfg.Emulator.EmitTraces)},
		{"TRANSPORT", setString(&cfg.Transport.Type)},
		{"ADDRESS", setString(&cfg.Transport.Address)},
		{"SERIAL_PORT", setString(&cfg.Transport.Serial.Port)},
		{"BAUD_RATE", setInt(&cfg.Transport.Serial.BaudRate)},
		{"LOG_LEVEL", setString(&cfg.Log.Level)},
		{"PROTOCOL_LOG", setString(&cfg.Log.ProtocolFile)},
		{"INFLUX_ENABLED", setBool(&cfg.Influx.Enabled)},
		{"INFLUX_URL", setString(&cfg.Influx.URL)},
		{"INFLUX_TOKEN", setString(&cfg.Influx.Token)},
		{"INFLUX_ORG", setString(&cfg.Influx.Org)},
		{"INFLUX_BUCKET", setString(&cfg.Influx.Bucket)},
		{"INFLUX_EVERY", setInt(&cfg.Influx.Every)},
		{"DISCOVERY", setBool(&cfg.Discovery.Enabled)},
	}

	for _, f := range fields {
		v, ok := lookup(EnvPrefix + f.name)
		if !ok {
			continue
		}
		if err := f.apply(v); err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, EnvPrefix, f.name, err)
		}
	}
	return cfg.Validate()
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}
