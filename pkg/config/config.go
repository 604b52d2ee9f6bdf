package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/version"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

//go:embed default.yaml
var defaultYAML []byte

// Configuration errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoRegisters   = errors.New("configuration has no registers")
)

// Register roles used by the sampler.
const (
	RoleSine    = "sine"
	RoleCounter = "counter"
)

// Config is the root of a configuration file.
type Config struct {
	EmbeddedConfig `yaml:",inline"`

	Emulator  EmulatorConfig  `yaml:"emulator"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
	Influx    InfluxConfig    `yaml:"influx"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// EmbeddedConfig is the identity and register set of one controller.
// It is read-only once the emulator has started.
type EmbeddedConfig struct {
	CpuName            string           `yaml:"cpuName"`
	SerialNumber       string           `yaml:"serialNumber"`
	ProtocolVersion    version.Version  `yaml:"protocolVersion"`
	ApplicationVersion version.Version  `yaml:"applicationVersion"`
	Registers          []RegisterConfig `yaml:"registers"`
}

// RegisterConfig describes one register in a configuration file.
type RegisterConfig struct {
	ID         uint32 `yaml:"id"`
	Name       string `yaml:"name"`
	FullName   string `yaml:"fullName,omitempty"`
	Type       string `yaml:"type"`
	TypeName   string `yaml:"typeName,omitempty"`
	Size       int    `yaml:"size,omitempty"`
	Offset     uint32 `yaml:"offset"`
	DerefDepth uint8  `yaml:"derefDepth,omitempty"`
	Source     string `yaml:"source,omitempty"`
	Access     string `yaml:"access"`
	Initial    string `yaml:"initial,omitempty"`

	Channel *uint8 `yaml:"channel,omitempty"`
	Mode    string `yaml:"mode,omitempty"`

	// Role marks registers the sampler drives: "sine" or "counter".
	Role string `yaml:"role,omitempty"`
}

// EmulatorConfig holds the runtime switches of the emulator.
type EmulatorConfig struct {
	AutoRespond        bool          `yaml:"autoRespond"`
	MultiNode          bool          `yaml:"multiNode"`
	NodeCount          int           `yaml:"nodeCount"`
	TickInterval       time.Duration `yaml:"tickInterval"`
	EmitTraces         bool          `yaml:"emitTraces"`
	NotificationBuffer int           `yaml:"notificationBuffer"`
}

// TransportConfig selects and configures the transport.
type TransportConfig struct {
	Type    string       `yaml:"type"`
	Address string       `yaml:"address"`
	Serial  SerialConfig `yaml:"serial"`
}

// SerialConfig configures the serial transport.
type SerialConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baudRate"`
	DataBits int           `yaml:"dataBits"`
	StopBits int           `yaml:"stopBits"`
	Parity   string        `yaml:"parity"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LogConfig configures operational logging and protocol capture.
type LogConfig struct {
	Level        string `yaml:"level"`
	ProtocolFile string `yaml:"protocolFile"`
}

// InfluxConfig configures the channel-data recorder.
type InfluxConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`

	// Every records one of every Every sampler frames.
	Every int `yaml:"every"`
}

// DiscoveryConfig configures mDNS advertisement of the TCP transport.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Default returns the built-in demonstration configuration.
func Default() *Config {
	cfg, err := parse(defaultYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("config: built-in default is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates a configuration file. Sections missing from the
// file keep the values of Default; the register set always comes from the
// file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	return parse(data, defaultYAML)
}

func parse(data, base []byte) (*Config, error) {
	cfg := &Config{}
	if base != nil {
		if err := yaml.Unmarshal(base, cfg); err != nil {
			return nil, fmt.Errorf("parsing defaults: %w", err)
		}
		cfg.Registers = nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Registers) == 0 {
		return ErrNoRegisters
	}
	if _, err := c.Definitions(); err != nil {
		return err
	}
	if c.Emulator.NodeCount < 0 || c.Emulator.NodeCount > 0xFF {
		return fmt.Errorf("%w: nodeCount %d out of range", ErrInvalidConfig, c.Emulator.NodeCount)
	}
	if c.Emulator.TickInterval < 0 {
		return fmt.Errorf("%w: negative tickInterval", ErrInvalidConfig)
	}
	if c.Emulator.NotificationBuffer < 0 {
		return fmt.Errorf("%w: negative notificationBuffer", ErrInvalidConfig)
	}
	if c.Influx.Every < 0 {
		return fmt.Errorf("%w: negative influx every", ErrInvalidConfig)
	}
	return nil
}

// Definitions converts the register set into store definitions. It checks
// the set as a whole, the same way register.Store.Add does.
func (c *EmbeddedConfig) Definitions() ([]register.Definition, error) {
	defs := make([]register.Definition, 0, len(c.Registers))
	for _, rc := range c.Registers {
		def, err := rc.Definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if _, err := register.NewStore(defs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return defs, nil
}

// NewStore builds a register store populated with the register set.
func (c *EmbeddedConfig) NewStore() (*register.Store, error) {
	defs, err := c.Definitions()
	if err != nil {
		return nil, err
	}
	return register.NewStore(defs...)
}

// RoleIDs returns the IDs of registers with the given role, in file order.
func (c *EmbeddedConfig) RoleIDs(role string) []uint32 {
	var ids []uint32
	for _, rc := range c.Registers {
		if rc.Role == role {
			ids = append(ids, rc.ID)
		}
	}
	return ids
}

// Definition converts one register entry.
func (rc RegisterConfig) Definition() (register.Definition, error) {
	fail := func(format string, args ...any) (register.Definition, error) {
		return register.Definition{}, fmt.Errorf("%w: register %d (%s): %s",
			ErrInvalidConfig, rc.ID, rc.Name, fmt.Sprintf(format, args...))
	}

	typ, err := register.ParseVariableType(rc.Type)
	if err != nil {
		return fail("%v", err)
	}
	size := rc.Size
	if size == 0 {
		size = typ.Size()
	}
	access, err := ParseAccess(rc.Access)
	if err != nil {
		return fail("%v", err)
	}
	source, err := ParseSource(rc.Source)
	if err != nil {
		return fail("%v", err)
	}
	mode, err := ParseChannelMode(rc.Mode)
	if err != nil {
		return fail("%v", err)
	}
	switch rc.Role {
	case "", RoleSine, RoleCounter:
	default:
		return fail("unknown role %q", rc.Role)
	}

	fullName := rc.FullName
	if fullName == "" {
		fullName = rc.Name
	}
	typeName := rc.TypeName
	if typeName == "" {
		typeName = typ.CType()
	}

	def := register.Definition{
		Descriptor: register.Descriptor{
			ID:         rc.ID,
			Name:       rc.Name,
			FullName:   fullName,
			Offset:     rc.Offset,
			DerefDepth: rc.DerefDepth,
			Source:     source,
			Size:       size,
			Access:     access,
			Type:       typ,
			TypeName:   typeName,
		},
		Channel: rc.Channel,
		Mode:    mode,
	}
	if err := def.Validate(); err != nil {
		return fail("%v", err)
	}
	if rc.Initial != "" {
		def.Initial, err = register.ParseValue(typ, size, rc.Initial)
		if err != nil {
			return fail("initial value: %v", err)
		}
	}
	return def, nil
}

// ParseAccess parses an access mode name.
func ParseAccess(s string) (wire.Access, error) {
	switch s {
	case "read", "r", "ro":
		return wire.AccessRead, nil
	case "write", "w", "wo":
		return wire.AccessWrite, nil
	case "readwrite", "rw":
		return wire.AccessReadWrite, nil
	default:
		return wire.AccessNone, fmt.Errorf("unknown access mode %q", s)
	}
}

// ParseSource parses a source domain name. Empty means a hand-written offset.
func ParseSource(s string) (wire.Source, error) {
	switch s {
	case "", "offset", "handwritten_offset":
		return wire.SourceHandWrittenOffset, nil
	case "index", "handwritten_index":
		return wire.SourceHandWrittenIndex, nil
	case "symbol", "symbol_table":
		return wire.SourceSymbolTable, nil
	case "template":
		return wire.SourceTemplate, nil
	default:
		return 0, fmt.Errorf("unknown source %q", s)
	}
}

// ParseChannelMode parses a channel mode name. Empty means off.
func ParseChannelMode(s string) (wire.ChannelMode, error) {
	switch s {
	case "", "off":
		return wire.ChannelOff, nil
	case "onchange", "on_change":
		return wire.ChannelOnChange, nil
	case "lowspeed", "low_speed":
		return wire.ChannelLowSpeed, nil
	case "once":
		return wire.ChannelOnce, nil
	default:
		return wire.ChannelOff, fmt.Errorf("unknown channel mode %q", s)
	}
}
