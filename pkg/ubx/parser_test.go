package ubx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type parserTestSequence struct {
	in    []byte
	final ParseResult
}

type parserTestSequenceBuilder struct {
	seq []parserTestSequence
}

func parserTestSequences() *parserTestSequenceBuilder {
	return &parserTestSequenceBuilder{}
}

func (b *parserTestSequenceBuilder) on(in ...byte) *parserTestSequenceBuilder {
	b.seq = append(b.seq, parserTestSequence{in: in, final: ParseResult{State: StateReceiving}})
	return b
}

func (b *parserTestSequenceBuilder) onFrame(pkt *Packet) *parserTestSequenceBuilder {
	frame := pkt.Bytes()
	return b.on(frame...).final(ParseResult{State: StateSyncing, Frame: frame})
}

func (b *parserTestSequenceBuilder) timeout() *parserTestSequenceBuilder {
	b.seq = append(b.seq, parserTestSequence{})
	return b
}

func (b *parserTestSequenceBuilder) final(pr ParseResult) *parserTestSequenceBuilder {
	b.seq[len(b.seq)-1].final = pr
	return b
}

func (b *parserTestSequenceBuilder) skipped(n int) *parserTestSequenceBuilder {
	return b.final(ParseResult{State: StateSyncing, Skipped: n})
}

func (b *parserTestSequenceBuilder) failed(n int, err error) *parserTestSequenceBuilder {
	return b.final(ParseResult{State: StateSyncing, Skipped: n, Err: err})
}

func (b *parserTestSequenceBuilder) build() []parserTestSequence {
	return b.seq
}

func TestParser(t *testing.T) {
	rawx := &Packet{Class: ClassRXM, ID: IDRxmRawx, Payload: []byte{1, 2, 3, 4, 5}}
	empty := &Packet{Class: 0x0a, ID: 0x04}
	testCases := []struct {
		name string
		seq  []parserTestSequence
	}{
		{
			name: "frames",
			seq: parserTestSequences().
				onFrame(rawx).
				onFrame(empty).
				onFrame(rawx).
				build(),
		},
		{
			name: "skip garbage",
			seq: parserTestSequences().
				on(0x00).skipped(1).
				on(0x62).skipped(1).
				on(Sync1, 0x00).skipped(2).
				onFrame(empty).
				build(),
		},
		{
			name: "repeated sync1",
			seq: parserTestSequences().
				on(Sync1, Sync1).final(ParseResult{State: StateReceiving, Skipped: 1}).
				on(Sync2, 0x0a, 0x04, 0, 0, 0x0e, 0x34).
				final(ParseResult{State: StateSyncing, Frame: empty.Bytes()}).
				build(),
		},
		{
			name: "checksum a",
			seq: parserTestSequences().
				on(Sync1, Sync2, 0x0a, 0x04, 0, 0, 0x0f).failed(7, ErrChecksum).
				onFrame(empty).
				build(),
		},
		{
			name: "checksum b",
			seq: parserTestSequences().
				on(Sync1, Sync2, 0x0a, 0x04, 0, 0, 0x0e, 0x35).failed(8, ErrChecksum).
				onFrame(rawx).
				build(),
		},
		{
			name: "too long",
			seq: parserTestSequences().
				on(Sync1, Sync2, 0x02, 0x15, 0xff, 0xff).failed(6, ErrTooLong).
				onFrame(rawx).
				build(),
		},
		{
			name: "timeout",
			seq: parserTestSequences().
				on(Sync1, Sync2, 0x02, 0x15, 5, 0, 1, 2).
				timeout().failed(8, ErrTruncated).
				timeout().final(ParseResult{State: StateSyncing}).
				onFrame(rawx).
				build(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var parser Parser
			for n, s := range tc.seq {
				var pr ParseResult
				if len(s.in) == 0 {
					pr = parser.Timeout()
				} else {
					for i, b := range s.in {
						pr = parser.Parse(b)
						if i+1 < len(s.in) {
							require.Nilf(t, pr.Frame, "seq[%d][%d] unexpected frame", n, i)
						}
					}
				}
				require.Equalf(t, s.final, pr, "seq[%d] final mismatch", n)
			}
		})
	}
}

func TestParserMaxPayload(t *testing.T) {
	parser := Parser{MaxPayload: 4}
	var pr ParseResult
	for _, b := range (&Packet{Class: 1, ID: 1, Payload: make([]byte, 5)}).Bytes()[:HeaderLen] {
		pr = parser.Parse(b)
	}
	require.ErrorIs(t, pr.Err, ErrTooLong)

	frame := (&Packet{Class: 1, ID: 1, Payload: make([]byte, 4)}).Bytes()
	for _, b := range frame {
		pr = parser.Parse(b)
	}
	require.Equal(t, frame, pr.Frame)
}

func TestParserReset(t *testing.T) {
	var parser Parser
	parser.Parse(Sync1)
	parser.Parse(Sync2)
	require.Equal(t, StateReceiving, parser.State())
	pr := parser.Reset()
	require.Equal(t, 2, pr.Skipped)
	require.Equal(t, StateSyncing, pr.State)
}
