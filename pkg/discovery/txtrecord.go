package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// EncodeTXT builds the TXT records of info.
func EncodeTXT(info *ServiceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyCPU:    info.CpuName,
		TXTKeySerial: info.SerialNumber,
	}
	if info.ProtocolVersion != "" {
		txt[TXTKeyProtocolVersion] = info.ProtocolVersion
	}
	if info.AppVersion != "" {
		txt[TXTKeyAppVersion] = info.AppVersion
	}
	return txt
}

// DecodeTXT parses TXT records. The cpu and serial keys are required.
func DecodeTXT(txt TXTRecordMap) (*ServiceInfo, error) {
	cpu, ok := txt[TXTKeyCPU]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyCPU)
	}
	serial, ok := txt[TXTKeySerial]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySerial)
	}
	return &ServiceInfo{
		CpuName:         cpu,
		SerialNumber:    serial,
		ProtocolVersion: txt[TXTKeyProtocolVersion],
		AppVersion:      txt[TXTKeyAppVersion],
	}, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInstanceName)
	}
	if len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidInstanceName, MaxInstanceNameLen)
	}
	return nil
}
