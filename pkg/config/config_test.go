package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/version"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "Embedded Emulator", cfg.CpuName)
	assert.Equal(t, version.MustParse(version.Current), cfg.ProtocolVersion)
	assert.Equal(t, version.Version{Major: 0, Minor: 0, Build: 1}, cfg.ApplicationVersion)
	assert.True(t, cfg.Emulator.AutoRespond)
	assert.Equal(t, time.Millisecond, cfg.Emulator.TickInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Transport.Serial.Timeout)

	assert.Equal(t, []uint32{1}, cfg.RoleIDs(RoleSine))
	assert.Equal(t, []uint32{7, 9, 10, 11, 12, 13, 14, 15, 20}, cfg.RoleIDs(RoleCounter))

	store, err := cfg.NewStore()
	require.NoError(t, err)
	assert.Equal(t, len(cfg.Registers), store.Len())

	// Every integer width has a counter.
	widths := make(map[register.VariableType]bool)
	for _, id := range cfg.RoleIDs(RoleCounter) {
		r, ok := store.ByID(id)
		require.True(t, ok)
		widths[r.Type] = true
	}
	for _, typ := range register.KnownTypes() {
		if typ.IsInteger() {
			assert.True(t, widths[typ], "no counter for %s", typ)
		}
	}

	sine, ok := store.ByChannel(0)
	require.True(t, ok)
	assert.Equal(t, "Sine", sine.FullName)
	assert.Equal(t, wire.ChannelOnChange, sine.Mode())
}

func TestRegisterDefinition(t *testing.T) {
	ch := uint8(4)
	rc := RegisterConfig{
		ID:         42,
		Name:       "speed",
		FullName:   "motor.speed",
		Type:       "int32_t",
		Offset:     0x100,
		DerefDepth: 2,
		Source:     "symbol",
		Access:     "rw",
		Initial:    "-5",
		Channel:    &ch,
		Mode:       "lowspeed",
	}

	def, err := rc.Definition()
	require.NoError(t, err)
	assert.Equal(t, register.TypeInt32, def.Type)
	assert.Equal(t, 4, def.Size)
	assert.Equal(t, wire.AccessReadWrite, def.Access)
	assert.Equal(t, wire.SourceSymbolTable, def.Source)
	assert.Equal(t, "int32_t", def.TypeName)
	assert.Equal(t, []byte{0xFB, 0xFF, 0xFF, 0xFF}, def.Initial)
	assert.Equal(t, wire.ChannelLowSpeed, def.Mode)
	assert.Equal(t, byte(0x2B), def.ControlByte())
}

func TestRegisterDefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		rc   RegisterConfig
	}{
		{"unknown type", RegisterConfig{ID: 1, Type: "float", Access: "read"}},
		{"unknown access", RegisterConfig{ID: 1, Type: "uint8", Access: "exec"}},
		{"unknown source", RegisterConfig{ID: 1, Type: "uint8", Access: "read", Source: "flash"}},
		{"unknown mode", RegisterConfig{ID: 1, Type: "uint8", Access: "read", Mode: "fast"}},
		{"unknown role", RegisterConfig{ID: 1, Type: "uint8", Access: "read", Role: "cosine"}},
		{"size mismatch", RegisterConfig{ID: 1, Type: "uint8", Size: 2, Access: "read"}},
		{"unknown type without size", RegisterConfig{ID: 1, Type: "unknown", Access: "read"}},
		{"bad initial", RegisterConfig{ID: 1, Type: "uint8", Access: "read", Initial: "300"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rc.Definition()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
cpuName: "STM32F4"
serialNumber: "SN-42"
protocolVersion: "0.0.7"
applicationVersion: "1.2.3"
registers:
  - id: 1
    name: "a"
    type: "uint16"
    offset: 0x10
    access: "write"
emulator:
  multiNode: true
  nodeCount: 3
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "STM32F4", cfg.CpuName)
	assert.Equal(t, version.Version{Major: 1, Minor: 2, Build: 3}, cfg.ApplicationVersion)
	require.Len(t, cfg.Registers, 1)
	assert.Equal(t, uint32(0x10), cfg.Registers[0].Offset)
	assert.True(t, cfg.Emulator.MultiNode)
	assert.Equal(t, 3, cfg.Emulator.NodeCount)

	// Sections absent from the file keep their defaults.
	assert.True(t, cfg.Emulator.AutoRespond)
	assert.Equal(t, "tcp", cfg.Transport.Type)
	assert.Equal(t, time.Millisecond, cfg.Emulator.TickInterval)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte(`cpuName: "x"`))
	assert.ErrorIs(t, err, ErrNoRegisters)

	_, err = Parse([]byte(`
registers:
  - {id: 1, name: "a", type: "uint8", access: "read"}
  - {id: 1, name: "b", type: "uint8", access: "read"}
`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, register.ErrDuplicateID)

	_, err = Parse([]byte(`
registers:
  - {id: 1, name: "a", type: "uint8", access: "read"}
emulator:
  nodeCount: 300
`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte("registers: [\n"))
	assert.Error(t, err)
}

func TestLoadAndMarshal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "controller.yaml")

	out, err := Default().Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, out, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"EMULATOR_CPU_NAME":      "env-cpu",
		"EMULATOR_MULTI_NODE":    "true",
		"EMULATOR_NODE_COUNT":    "4",
		"EMULATOR_TICK_INTERVAL": "2ms",
		"EMULATOR_TRANSPORT":     "serial",
		"EMULATOR_BAUD_RATE":     "9600",
		"EMULATOR_INFLUX_TOKEN":  "secret",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	require.NoError(t, applyEnv(cfg, lookup))
	assert.Equal(t, "env-cpu", cfg.CpuName)
	assert.True(t, cfg.Emulator.MultiNode)
	assert.Equal(t, 4, cfg.Emulator.NodeCount)
	assert.Equal(t, 2*time.Millisecond, cfg.Emulator.TickInterval)
	assert.Equal(t, "serial", cfg.Transport.Type)
	assert.Equal(t, 9600, cfg.Transport.Serial.BaudRate)
	assert.Equal(t, "secret", cfg.Influx.Token)

	env = map[string]string{"EMULATOR_AUTO_RESPOND": "maybe"}
	assert.ErrorIs(t, applyEnv(Default(), lookup), ErrInvalidConfig)
}

func TestApplyEnvFromProcess(t *testing.T) {
	t.Setenv("EMULATOR_SERIAL_NUMBER", "SN-ENV")
	cfg := Default()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "SN-ENV", cfg.SerialNumber)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EMULATOR_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("EMULATOR_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("EMULATOR_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("EMULATOR_TEST_DOTENV"))
}
