package bolt

import (
	"encoding/binary"
	"io"
)

// handshakeMagic is the fixed 4-byte preamble every Bolt connection opens
// with, before any version negotiation bytes.
var handshakeMagic = [4]byte{0x60, 0x60, 0xB0, 0x17}

// ProtocolVersion1 is the only version this implementation negotiates.
const ProtocolVersion1 uint32 = 0x00000001

// DefaultProposedVersions is the 4-slot version proposal list a client
// sends, most-preferred first, zero-padded. This implementation only ever
// proposes version 1.
var DefaultProposedVersions = [4]uint32{ProtocolVersion1, 0, 0, 0}

// writeClientHandshake sends the 20-byte preamble: magic followed by four
// big-endian u32 proposed versions.
func writeClientHandshake(w io.Writer, proposed [4]uint32) error {
	buf := make([]byte, 20)
	copy(buf[0:4], handshakeMagic[:])
	for i, v := range proposed {
		binary.BigEndian.PutUint32(buf[4+i*4:8+i*4], v)
	}
	_, err := w.Write(buf)
	if err != nil {
		return transportErr(err)
	}
	return nil
}

// readServerHandshakeResponse reads the server's single 4-byte chosen
// version reply. A zero reply means no proposed version was acceptable.
func readServerHandshakeResponse(r io.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, transportErr(err)
	}
	return binary.BigEndian.Uint32(buf), nil
}

// readClientHandshake reads and validates the client's 20-byte preamble,
// returning the four proposed versions in order.
func readClientHandshake(r io.Reader) ([4]uint32, error) {
	var proposed [4]uint32
	buf := make([]byte, 20)
	if _, err := io.ReadFull(r, buf); err != nil {
		return proposed, transportErr(err)
	}
	if buf[0] != handshakeMagic[0] || buf[1] != handshakeMagic[1] ||
		buf[2] != handshakeMagic[2] || buf[3] != handshakeMagic[3] {
		return proposed, handshakeErr("bad magic preamble")
	}
	for i := range proposed {
		proposed[i] = binary.BigEndian.Uint32(buf[4+i*4 : 8+i*4])
	}
	return proposed, nil
}

// writeServerHandshakeResponse sends the server's 4-byte chosen version.
func writeServerHandshakeResponse(w io.Writer, version uint32) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, version)
	if _, err := w.Write(buf); err != nil {
		return transportErr(err)
	}
	return nil
}

// chooseVersion returns the first proposed version this implementation
// supports (only ProtocolVersion1), or 0 if none match.
func chooseVersion(proposed [4]uint32) uint32 {
	for _, v := range proposed {
		if v == ProtocolVersion1 {
			return v
		}
	}
	return 0
}
