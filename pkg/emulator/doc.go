// Package emulator implements the controller side of the debug protocol.
//
// A Dispatcher interprets decoded messages against a register.Store and
// returns the replies and notifications they produce without touching any
// transport. The Sampler ticks on a fixed period, updates the synthetic
// demonstration registers and builds channel-data frames. The Emulator glues
// a transport, the wire decoder, the Dispatcher and the Sampler together and
// publishes notifications on a buffered channel.
//
// Typical usage:
//
//	store, _ := cfg.NewStore()
//	emu, err := emulator.New(store, emulator.ConfigFrom(cfg), tr)
//	if err != nil {
//	    return err
//	}
//	if err := emu.Start(ctx); err != nil {
//	    return err
//	}
//	defer emu.Stop()
//	for n := range emu.Notifications() {
//	    fmt.Println(n)
//	}
package emulator
