package protocol

// Parser assembles fixed-size frames from a raw byte stream one byte at a
// time, undoing the wire escaping and rejecting malformed fragments as early
// as possible. It tolerates partial delivery: feeding may stop and resume at
// any byte boundary.
//
// The parser deliberately keeps only two bits of stream state besides the
// accumulation buffer: whether it is still waiting for an unescaped start
// marker, and the last raw byte seen (needed to tell an escape prefix from a
// literal marker byte).
type Parser struct {
	wantCmd byte
	wantLen byte
	size    int

	buf          [ResponseFrameSize]byte
	used         int
	waitForStart bool
	lastByte     byte
}

// NewParser returns a parser for 12-byte read responses.
func NewParser() *Parser {
	return newParser(CmdReadResponse, ResponsePayloadLen, ResponseFrameSize)
}

// NewRequestParser returns a parser for 8-byte read requests. The device side
// of the protocol; used by the simulator.
func NewRequestParser() *Parser {
	return newParser(CmdRead, RequestPayloadLen, RequestFrameSize)
}

func newParser(wantCmd, wantLen byte, size int) *Parser {
	p := &Parser{wantCmd: wantCmd, wantLen: wantLen, size: size}
	p.Reset()
	return p
}

// Reset discards any accumulated frame data and returns the parser to the
// start-seeking state. The last-byte memory is kept so that escaping remains
// correct across a reset in the middle of a live stream.
func (p *Parser) Reset() {
	p.waitForStart = true
	p.used = 0
}

// ResetStream resets the parser and additionally forgets the last raw byte
// seen. Use when the underlying connection is replaced rather than when a
// frame is accepted or rejected.
func (p *Parser) ResetStream() {
	p.Reset()
	p.lastByte = 0
}

// Feed consumes one raw byte from the stream. It reports true once a complete
// frame has been assembled; the frame stays available via Frame until the
// next Reset or Feed.
func (p *Parser) Feed(raw byte) bool {
	last := p.lastByte
	p.lastByte = raw

	if p.waitForStart {
		if raw == StartByte && last != EscapeByte {
			p.waitForStart = false
		}
		return false
	}

	switch raw {
	case StartByte:
		if last == EscapeByte {
			p.store(raw)
		} else {
			// A bare start marker mid-frame means the sender restarted.
			// The marker both terminates the fragment and opens the next
			// frame, so accumulation restarts without re-entering the
			// start-seeking state.
			p.used = 0
			return false
		}
	case EscapeByte:
		if last == EscapeByte {
			p.store(raw)
		}
		// A lone escape byte is a prefix only: consumed, never stored.
	default:
		p.store(raw)
	}

	// Reject garbage as soon as the header can be checked, so a corrupt
	// stream never accumulates more than two bytes before resynchronizing.
	if p.used == 1 && p.buf[0] != p.wantCmd {
		p.Reset()
		return false
	}
	if p.used == 2 && p.buf[1] != p.wantLen {
		p.Reset()
		return false
	}

	return p.used == p.size
}

// Frame returns the bytes accumulated so far. Once Feed has reported
// completion this is the full unescaped frame.
func (p *Parser) Frame() []byte {
	return p.buf[:p.used]
}

// Accumulating reports whether the parser has seen a start marker and is
// collecting frame bytes.
func (p *Parser) Accumulating() bool {
	return !p.waitForStart
}

func (p *Parser) store(b byte) {
	if p.used < p.size {
		p.buf[p.used] = b
		p.used++
	}
}
