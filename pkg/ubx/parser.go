package ubx

import "encoding/binary"

// DefaultMaxPayload is the default payload limit of Parser.
const DefaultMaxPayload = 8192

// ParseState indicates whether the parser is inside a frame.
type ParseState int

const (
	// StateSyncing means the parser is looking for the sync bytes.
	StateSyncing ParseState = iota
	// StateReceiving means a frame is partially received.
	StateReceiving
)

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	State ParseState
	// Frame is a complete verified frame, owned by the caller.
	Frame []byte
	// Skipped is the number of bytes discarded by this step.
	Skipped int
	Err     error
}

type parseState int

const (
	stateSync1   parseState = iota // waiting for Sync1
	stateSync2                     // waiting for Sync2
	stateClass                     // waiting for class
	stateID                        // waiting for id
	stateLenLo                     // waiting for length low byte
	stateLenHi                     // waiting for length high byte
	statePayload                   // waiting for payload
	stateCkA                       // waiting for CK_A
	stateCkB                       // waiting for CK_B
)

// Parser splits a byte stream into frames.
type Parser struct {
	// MaxPayload rejects corrupted length fields. 0 means DefaultMaxPayload.
	MaxPayload int

	state    parseState
	frame    []byte
	length   int
	ckA, ckB byte
}

// State gets the current parse state.
func (p *Parser) State() ParseState {
	if p.state == stateSync1 {
		return StateSyncing
	}
	return StateReceiving
}

// Reset drops any partially received frame.
func (p *Parser) Reset() (pr ParseResult) {
	pr.Skipped = p.resync()
	pr.State = p.State()
	return
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	pr.Frame, pr.Skipped, pr.Err = p.parseByte(b)
	pr.State = p.State()
	return
}

// Timeout notifies the parser the stream paused. A partial frame is
// discarded.
func (p *Parser) Timeout() (pr ParseResult) {
	if p.state != stateSync1 {
		pr.Skipped, pr.Err = p.resync(), ErrTruncated
	}
	pr.State = p.State()
	return
}

func (p *Parser) parseByte(b byte) (frame []byte, skipped int, err error) {
	switch p.state {
	case stateSync1:
		if b != Sync1 {
			return nil, 1, nil
		}
		p.frame = append(p.frame[:0], b)
		p.state = stateSync2
		return
	case stateSync2:
		if b == Sync2 {
			p.frame = append(p.frame, b)
			p.ckA, p.ckB = 0, 0
			p.state = stateClass
			return
		}
		skipped = p.resync()
		if b == Sync1 {
			p.frame = append(p.frame[:0], b)
			p.state = stateSync2
			return
		}
		return nil, skipped + 1, nil
	case stateCkA:
		if b != p.ckA {
			return nil, p.resync() + 1, ErrChecksum
		}
		p.frame = append(p.frame, b)
		p.state = stateCkB
		return
	case stateCkB:
		if b != p.ckB {
			return nil, p.resync() + 1, ErrChecksum
		}
		frame = append(p.frame, b)
		p.frame = nil
		p.state = stateSync1
		return
	}

	p.frame = append(p.frame, b)
	p.ckA += b
	p.ckB += p.ckA
	switch p.state {
	case stateClass:
		p.state = stateID
	case stateID:
		p.state = stateLenLo
	case stateLenLo:
		p.state = stateLenHi
	case stateLenHi:
		p.length = int(binary.LittleEndian.Uint16(p.frame[4:]))
		limit := p.MaxPayload
		if limit <= 0 {
			limit = DefaultMaxPayload
		}
		switch {
		case p.length > limit:
			return nil, p.resync(), ErrTooLong
		case p.length == 0:
			p.state = stateCkA
		default:
			p.state = statePayload
		}
	case statePayload:
		if len(p.frame) == HeaderLen+p.length {
			p.state = stateCkA
		}
	}
	return
}

// resync returns to sync state and reports the discarded bytes.
func (p *Parser) resync() int {
	n := len(p.frame)
	p.frame = p.frame[:0]
	p.state = stateSync1
	return n
}
