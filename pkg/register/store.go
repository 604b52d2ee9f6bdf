package register

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

// Store errors.
var (
	ErrDuplicateID      = errors.New("duplicate register id")
	ErrDuplicateChannel = errors.New("channel already assigned")
	ErrChannelRange     = errors.New("channel index out of range")
	ErrChannelUnbound   = errors.New("no register bound to channel")
	ErrInvalidMode      = errors.New("invalid channel mode")
)

// Definition is a register as supplied by configuration.
type Definition struct {
	Descriptor

	// Initial is the starting value. Empty means all zero bytes.
	Initial []byte

	// Channel optionally binds the register to a streaming channel.
	Channel *uint8
	Mode    wire.ChannelMode
}

// Channel is a bound channel slot.
type Channel struct {
	Index    uint8
	Mode     wire.ChannelMode
	Register *Register
}

// Store holds every register of one emulated controller.
type Store struct {
	mu   sync.RWMutex
	regs []*Register // ascending ID
	byID map[uint32]*Register

	// chMu serialises binding changes and guards channels.
	chMu     sync.RWMutex
	channels [wire.MaxChannels]*Register
}

// NewStore creates a store populated with defs.
func NewStore(defs ...Definition) (*Store, error) {
	s := &Store{byID: make(map[uint32]*Register)}
	if err := s.Add(defs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Add inserts registers in bulk. Either all definitions are added or none.
func (s *Store) Add(defs ...Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chMu.Lock()
	defer s.chMu.Unlock()

	added := make(map[uint32]bool, len(defs))
	claimed := s.channels
	regs := make([]*Register, 0, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
		if _, exists := s.byID[def.ID]; exists || added[def.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateID, def.ID)
		}
		if len(def.Initial) != 0 && len(def.Initial) != def.Size {
			return fmt.Errorf("%w: register %d initial value has %d bytes, size is %d",
				ErrSizeMismatch, def.ID, len(def.Initial), def.Size)
		}
		r := newRegister(def.Descriptor, def.Initial)
		if def.Channel != nil {
			ch := *def.Channel
			if int(ch) >= wire.MaxChannels {
				return fmt.Errorf("%w: register %d channel %d", ErrChannelRange, def.ID, ch)
			}
			if !def.Mode.IsValid() {
				return fmt.Errorf("%w: register %d mode %d", ErrInvalidMode, def.ID, def.Mode)
			}
			if claimed[ch] != nil {
				return fmt.Errorf("%w: channel %d", ErrDuplicateChannel, ch)
			}
			claimed[ch] = r
			r.binding.Store(Binding{Channel: ch, Mode: def.Mode, Bound: true}.pack())
		}
		added[def.ID] = true
		regs = append(regs, r)
	}

	s.channels = claimed
	for _, r := range regs {
		s.byID[r.ID] = r
	}
	s.regs = append(s.regs, regs...)
	sort.SliceStable(s.regs, func(i, j int) bool { return s.regs[i].ID < s.regs[j].ID })
	return nil
}

// Len returns the number of registers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regs)
}

// All returns every register in ascending ID order.
func (s *Store) All() []*Register {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Register(nil), s.regs...)
}

// Readable returns the registers with read access, in ID order.
func (s *Store) Readable() []*Register {
	return s.filter(func(r *Register) bool { return r.Access.CanRead() })
}

// Writable returns the registers with write access, in ID order.
func (s *Store) Writable() []*Register {
	return s.filter(func(r *Register) bool { return r.Access.CanWrite() })
}

func (s *Store) filter(keep func(*Register) bool) []*Register {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Register
	for _, r := range s.regs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// ByID looks up a register by its ID.
func (s *Store) ByID(id uint32) (*Register, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	return r, ok
}

// ByName looks up a register by full name, first in ID order.
func (s *Store) ByName(fullName string) (*Register, bool) {
	return s.first(func(r *Register) bool { return r.FullName == fullName })
}

// Find returns the first register, in ID order, matching c.
func (s *Store) Find(c Criteria) (*Register, bool) {
	return s.first(func(r *Register) bool { return r.Criteria() == c })
}

// FindWritable is Find restricted to registers with write access.
func (s *Store) FindWritable(c Criteria) (*Register, bool) {
	return s.first(func(r *Register) bool { return r.Access.CanWrite() && r.Criteria() == c })
}

func (s *Store) first(match func(*Register) bool) (*Register, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.regs {
		if match(r) {
			return r, true
		}
	}
	return nil, false
}

// ByChannel returns the register bound to channel ch.
func (s *Store) ByChannel(ch uint8) (*Register, bool) {
	if int(ch) >= wire.MaxChannels {
		return nil, false
	}
	s.chMu.RLock()
	defer s.chMu.RUnlock()
	r := s.channels[ch]
	return r, r != nil
}

// Channels returns the bound channels whose mode satisfies match, in
// ascending channel order.
func (s *Store) Channels(match func(wire.ChannelMode) bool) []Channel {
	s.chMu.RLock()
	defer s.chMu.RUnlock()
	var out []Channel
	for ch, r := range s.channels {
		if r == nil {
			continue
		}
		mode := r.Mode()
		if match == nil || match(mode) {
			out = append(out, Channel{Index: uint8(ch), Mode: mode, Register: r})
		}
	}
	return out
}

// AnyChannel reports whether some bound channel satisfies match.
func (s *Store) AnyChannel(match func(wire.ChannelMode) bool) bool {
	s.chMu.RLock()
	defer s.chMu.RUnlock()
	for _, r := range s.channels {
		if r != nil && match(r.Mode()) {
			return true
		}
	}
	return false
}

// Bind assigns channel ch to r with the given mode. Whatever register held
// ch is released first, and r gives up any channel it held before.
func (s *Store) Bind(ch uint8, r *Register, mode wire.ChannelMode) error {
	if int(ch) >= wire.MaxChannels {
		return fmt.Errorf("%w: %d", ErrChannelRange, ch)
	}
	if !mode.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	s.chMu.Lock()
	defer s.chMu.Unlock()

	s.releaseLocked(ch)
	if old, ok := r.Channel(); ok {
		s.releaseLocked(old)
	}
	s.channels[ch] = r
	r.binding.Store(Binding{Channel: ch, Mode: mode, Bound: true}.pack())
	return nil
}

// Release frees channel ch. It reports whether a register was bound.
func (s *Store) Release(ch uint8) bool {
	if int(ch) >= wire.MaxChannels {
		return false
	}
	s.chMu.Lock()
	defer s.chMu.Unlock()
	return s.releaseLocked(ch)
}

func (s *Store) releaseLocked(ch uint8) bool {
	r := s.channels[ch]
	if r == nil {
		return false
	}
	s.channels[ch] = nil
	r.binding.Store(0)
	return true
}

// SetMode changes the streaming mode of channel ch and returns its register.
func (s *Store) SetMode(ch uint8, mode wire.ChannelMode) (*Register, error) {
	if int(ch) >= wire.MaxChannels {
		return nil, fmt.Errorf("%w: %d", ErrChannelRange, ch)
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	s.chMu.Lock()
	defer s.chMu.Unlock()

	r := s.channels[ch]
	if r == nil {
		return nil, fmt.Errorf("%w: %d", ErrChannelUnbound, ch)
	}
	r.binding.Store(Binding{Channel: ch, Mode: mode, Bound: true}.pack())
	return r, nil
}
