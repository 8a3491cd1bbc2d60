package ubx

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame constants.
const (
	Sync1 byte = 0xb5
	Sync2 byte = 0x62

	// HeaderLen covers sync, class, id and length.
	HeaderLen = 6
	// Overhead is the frame size without payload.
	Overhead = HeaderLen + 2
)

// Message classes and ids used to control auto reports.
const (
	ClassRXM byte = 0x02
	ClassCFG byte = 0x06

	IDRxmSfrbx byte = 0x13
	IDRxmRawx  byte = 0x15
	IDCfgMsg   byte = 0x01
)

// MessageID identifies a message type.
type MessageID struct {
	Class byte
	ID    byte
}

// String implements fmt.Stringer.
func (m MessageID) String() string {
	return fmt.Sprintf("%02x-%02x", m.Class, m.ID)
}

// DefaultAutoReports are the raw measurement messages a logging receiver
// is configured to emit periodically.
var DefaultAutoReports = []MessageID{
	{ClassRXM, IDRxmRawx},
	{ClassRXM, IDRxmSfrbx},
}

// Packet is a decoded frame.
type Packet struct {
	Class   byte
	ID      byte
	Payload []byte
}

// DisableMessage builds the configuration frame setting the rate of msg
// to zero on the current port.
func DisableMessage(msg MessageID) *Packet {
	return &Packet{Class: ClassCFG, ID: IDCfgMsg, Payload: []byte{msg.Class, msg.ID, 0}}
}

// MessageID returns the id of the packet.
func (p *Packet) MessageID() MessageID {
	return MessageID{Class: p.Class, ID: p.ID}
}

// Len returns the encoded frame size.
func (p *Packet) Len() int {
	return len(p.Payload) + Overhead
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	b := make([]byte, p.Len())
	b[0], b[1], b[2], b[3] = Sync1, Sync2, p.Class, p.ID
	binary.LittleEndian.PutUint16(b[4:], uint16(len(p.Payload)))
	copy(b[HeaderLen:], p.Payload)
	n := len(b) - 2
	b[n], b[n+1] = Checksum(b[2:n])
	return b
}

// WriteTo implements io.WriterTo.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// Decode decodes a complete frame.
func Decode(frame []byte) (*Packet, error) {
	if len(frame) < Overhead || frame[0] != Sync1 || frame[1] != Sync2 {
		return nil, ErrNotFrame
	}
	size := int(binary.LittleEndian.Uint16(frame[4:]))
	if len(frame) != size+Overhead {
		return nil, ErrNotFrame
	}
	n := len(frame) - 2
	if a, b := Checksum(frame[2:n]); a != frame[n] || b != frame[n+1] {
		return nil, ErrChecksum
	}
	return &Packet{Class: frame[2], ID: frame[3], Payload: frame[HeaderLen:n]}, nil
}

// Checksum calculates the 8-bit Fletcher checksum.
func Checksum(data []byte) (a, b byte) {
	for _, c := range data {
		a += c
		b += a
	}
	return
}
