// Package comm provides L0 framing support.
package comm

// L0 frames are exchanged between the firmware and the host over a
// byte oriented peer-to-peer channel (e.g. serial port):
//
//	F5 <len> <payload...> <xor>
//
// where <xor> is the XOR of all payload bytes. The single bytes F6 (ACK),
// F7 (NAK) and F8 (IAM) stand for a whole message when they arrive
// between frames, and are ordinary data inside a frame.
//
// The Decoder recovers from any corruption at the next header byte:
// an oversized length or a checksum mismatch abandons the frame and the
// decoder waits for a header again. Nothing in this package re-sends a
// frame or times out a partial one.
//
// With the command-class layout, payloads start with a class code and a
// command code, see commands.go.
