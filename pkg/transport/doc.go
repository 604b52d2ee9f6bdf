// Package transport carries raw protocol bytes between the emulator and a
// debugger client.
//
// The emulator core depends only on the Transport capability set: open and
// close, send bytes, and callbacks for received bytes and asynchronous
// errors. Framing is not a transport concern; chunks are delivered as read
// and reassembled by the wire codec.
//
// Implementations:
//   - TCPServer: listens for a single debugger client over TCP
//   - Serial: a serial port via github.com/goburrow/serial
//   - Pipe: in-memory, for tests and embedding
//
// Transports are selected by name through a Registry:
//
//	reg := transport.DefaultRegistry()
//	t, err := reg.New("tcp", transport.Options{Address: ":5000"})
package transport
