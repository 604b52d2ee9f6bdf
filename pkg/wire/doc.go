// Package wire defines the binary wire format of the embedded debug protocol.
//
// Every message travels as one self-delimited frame:
//
//	STX | escape(ControllerID MsgID Command CommandData... CRC) | ETX
//
// STX is 0x55, ETX is 0xAA. Body bytes that collide with STX, ETX or the
// escape byte (0x66) are sent as the escape byte followed by the original
// byte XOR 0x66. The CRC is a CRC-8 (polynomial 0x07) over the unescaped
// header and command data.
//
// # Streams
//
// Transports deliver arbitrary chunks. Decode takes the remainder returned
// by the previous call and yields every complete frame plus the new
// remainder, so decoding does not depend on how a stream is split.
//
// # Channel Data
//
// Streamed register values use the ReadChannelData command with a payload of
//
//	elapsed time (3 bytes LE, ms) | channel mask (2 bytes LE) | values...
//
// where values are concatenated in ascending channel order.
package wire
