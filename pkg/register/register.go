package register

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

// Register errors.
var (
	ErrSizeMismatch = errors.New("value size does not match register size")
	ErrInvalidSize  = errors.New("register size out of range")
)

// MaxSize is the largest register the one-byte size field can describe.
const MaxSize = 255

// Descriptor is the immutable identity and addressing of a register.
type Descriptor struct {
	ID       uint32
	Name     string
	FullName string

	Offset     uint32
	DerefDepth uint8
	Source     wire.Source
	Size       int
	Access     wire.Access

	Type VariableType

	// TypeName carries the raw type name when Type is TypeUnknown.
	TypeName string
}

// ControlByte returns the access-control byte for this register.
func (d Descriptor) ControlByte() byte {
	return wire.ControlByte(d.Access, d.Source, d.DerefDepth)
}

// Criteria returns the addressing tuple that identifies this register.
func (d Descriptor) Criteria() Criteria {
	return Criteria{
		Offset:     d.Offset,
		DerefDepth: d.DerefDepth,
		Access:     d.Access,
		Source:     d.Source,
		Size:       d.Size,
	}
}

// Validate checks the descriptor for internal consistency.
func (d Descriptor) Validate() error {
	if d.Size <= 0 || d.Size > MaxSize {
		return fmt.Errorf("%w: register %d has size %d", ErrInvalidSize, d.ID, d.Size)
	}
	if ts := d.Type.Size(); ts != 0 && ts != d.Size {
		return fmt.Errorf("%w: register %d is %s but declares size %d", ErrSizeMismatch, d.ID, d.Type, d.Size)
	}
	if d.DerefDepth > wire.MaxDerefDepth {
		return fmt.Errorf("register %d: dereference depth %d exceeds %d", d.ID, d.DerefDepth, wire.MaxDerefDepth)
	}
	return nil
}

// Criteria is the lookup tuple (offset, dereference depth, access mode,
// source, size).
type Criteria struct {
	Offset     uint32
	DerefDepth uint8
	Access     wire.Access
	Source     wire.Source
	Size       int
}

// CriteriaFromControl builds criteria from the wire addressing fields.
func CriteriaFromControl(offset uint32, ctrl byte, size int) Criteria {
	access, source, deref := wire.ParseControlByte(ctrl)
	return Criteria{
		Offset:     offset,
		DerefDepth: deref,
		Access:     access,
		Source:     source,
		Size:       size,
	}
}

// Binding describes a register's channel assignment.
type Binding struct {
	Channel uint8
	Mode    wire.ChannelMode
	Bound   bool
}

const (
	bindingBound        = 1 << 16
	bindingChannelShift = 8
)

func (b Binding) pack() uint32 {
	if !b.Bound {
		return 0
	}
	return bindingBound | uint32(b.Channel)<<bindingChannelShift | uint32(b.Mode)
}

func unpackBinding(v uint32) Binding {
	if v&bindingBound == 0 {
		return Binding{}
	}
	return Binding{
		Channel: uint8(v >> bindingChannelShift),
		Mode:    wire.ChannelMode(v),
		Bound:   true,
	}
}

// Register is one addressable value.
type Register struct {
	Descriptor

	value   atomic.Pointer[[]byte]
	binding atomic.Uint32
}

func newRegister(d Descriptor, initial []byte) *Register {
	r := &Register{Descriptor: d}
	v := make([]byte, d.Size)
	copy(v, initial)
	r.value.Store(&v)
	return r
}

// Value returns a copy of the current value bytes.
func (r *Register) Value() []byte {
	return append([]byte(nil), *r.value.Load()...)
}

// SetValue replaces the value. The slice must match the register size exactly.
func (r *Register) SetValue(v []byte) error {
	if len(v) != r.Size {
		return fmt.Errorf("%w: register %d wants %d bytes, got %d", ErrSizeMismatch, r.ID, r.Size, len(v))
	}
	nv := append([]byte(nil), v...)
	r.value.Store(&nv)
	return nil
}

// Update atomically replaces the value with fn(current). fn may be called
// more than once under contention and must not retain its argument.
func (r *Register) Update(fn func(cur []byte) []byte) error {
	for {
		old := r.value.Load()
		next := fn(append([]byte(nil), *old...))
		if len(next) != r.Size {
			return fmt.Errorf("%w: register %d wants %d bytes, got %d", ErrSizeMismatch, r.ID, r.Size, len(next))
		}
		if r.value.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// Decoded returns the value interpreted according to the register type.
func (r *Register) Decoded() any {
	return DecodeValue(r.Type, *r.value.Load())
}

// Binding returns the current channel assignment.
func (r *Register) Binding() Binding {
	return unpackBinding(r.binding.Load())
}

// Channel returns the bound channel index, if any.
func (r *Register) Channel() (uint8, bool) {
	b := r.Binding()
	return b.Channel, b.Bound
}

// Mode returns the streaming mode, ChannelOff when unbound.
func (r *Register) Mode() wire.ChannelMode {
	return r.Binding().Mode
}

// String returns a short description for logs.
func (r *Register) String() string {
	return fmt.Sprintf("register %d %q @0x%X", r.ID, r.FullName, r.Offset)
}
