package discovery

import (
	"errors"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of an emulator.
	ServiceType = "_embdbg._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is advertised when the listen address carries no port.
	DefaultPort = 5000

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// BrowseTimeout bounds a one-shot browse.
	BrowseTimeout = 5 * time.Second
)

// TXT record keys.
const (
	TXTKeyCPU             = "cpu"
	TXTKeySerial          = "serial"
	TXTKeyProtocolVersion = "proto"
	TXTKeyAppVersion      = "app"
)

// Errors.
var (
	ErrInvalidInstanceName = errors.New("invalid instance name")
	ErrMissingRequired     = errors.New("missing required field")
	ErrNotAdvertising      = errors.New("not advertising")
)

// TXTRecordMap holds TXT record key/value pairs.
type TXTRecordMap map[string]string

// ServiceInfo describes an advertised emulator.
type ServiceInfo struct {
	InstanceName    string
	Port            uint16
	CpuName         string
	SerialNumber    string
	ProtocolVersion string
	AppVersion      string
}

// Service is an emulator found on the network.
type Service struct {
	ServiceInfo

	Host      string
	Addresses []string
}
