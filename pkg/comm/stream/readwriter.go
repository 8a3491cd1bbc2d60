package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxSize limits the size of a single packet.
const DefaultMaxSize = 1 << 20

// ReadWriter implements PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
	// MaxSize rejects corrupted length prefixes. 0 means DefaultMaxSize.
	MaxSize uint32
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	limit := p.MaxSize
	if limit == 0 {
		limit = DefaultMaxSize
	}
	if size > limit {
		return nil, fmt.Errorf("packet size %d exceeds limit %d", size, limit)
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(p, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	size := uint32(len(pkt))
	if err := binary.Write(p, binary.LittleEndian, size); err != nil {
		return err
	}
	_, err := p.Write(pkt[:size])
	return err
}
