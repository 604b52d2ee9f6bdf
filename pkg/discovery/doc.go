// Package discovery advertises and finds emulators over mDNS/DNS-SD.
//
// An emulator serving the TCP transport registers one instance of the
// _embdbg._tcp service. The instance name defaults to the configured
// instance, and the TXT records describe the emulated controller:
//
//	cpu=<cpu name> serial=<serial number> proto=<protocol version> app=<application version>
//
// Debugger tooling can use Browser to list emulators on the local network.
package discovery
