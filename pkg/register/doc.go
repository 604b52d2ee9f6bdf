// Package register holds the register model the emulator operates on.
//
// A Store is an arena of registers created once from configuration and
// never shrunk. Descriptors are immutable after insertion. Each register
// keeps its value in an atomic slot, so a reader never observes a partially
// written value and no lock spans more than one register. Channel bindings
// are serialised by the Store so that a channel index is held by at most one
// register at a time.
package register
