// Package version provides the major.minor.build versions reported by a
// controller for its protocol and application.
package version

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Current is the protocol version implemented by this emulator.
const Current = "0.0.7"

// Size is the number of bytes a version occupies on the wire.
const Size = 4

// ErrShortVersion indicates a wire version of fewer than Size bytes.
var ErrShortVersion = errors.New("version payload too short")

// Version is a parsed "major.minor.build" version.
type Version struct {
	Major uint8
	Minor uint8
	Build uint16
}

// Parse parses a "major.minor.build" version string. The build component may
// be omitted and defaults to 0.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 && len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor.build", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || parts[0] == "" {
		return Version{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || parts[1] == "" {
		return Version{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	var build uint64
	if len(parts) == 3 {
		build, err = strconv.ParseUint(parts[2], 10, 16)
		if err != nil || parts[2] == "" {
			return Version{}, fmt.Errorf("invalid version %q: bad build component", s)
		}
	}

	return Version{Major: uint8(major), Minor: uint8(minor), Build: uint16(build)}, nil
}

// MustParse is Parse for constants. It panics on malformed input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor.build".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// Compatible returns true if the other version has the same major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// Bytes returns the wire encoding: major, minor, build (u16 little endian).
func (v Version) Bytes() []byte {
	b := make([]byte, Size)
	b[0] = v.Major
	b[1] = v.Minor
	binary.LittleEndian.PutUint16(b[2:], v.Build)
	return b
}

// FromBytes decodes the wire encoding produced by Bytes.
func FromBytes(b []byte) (Version, error) {
	if len(b) < Size {
		return Version{}, fmt.Errorf("%w: %d bytes", ErrShortVersion, len(b))
	}
	return Version{Major: b[0], Minor: b[1], Build: binary.LittleEndian.Uint16(b[2:])}, nil
}

// MarshalYAML writes the version as a string.
func (v Version) MarshalYAML() (any, error) {
	return v.String(), nil
}

// UnmarshalYAML reads a version string.
func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
