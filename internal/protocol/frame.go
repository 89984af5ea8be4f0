package protocol

import (
	"encoding/binary"
	"math"
)

// BuildReadRequest returns the unescaped 8-byte read request for a register id.
func BuildReadRequest(id uint32) []byte {
	frame := make([]byte, RequestFrameSize)
	frame[0] = CmdRead
	frame[1] = RequestPayloadLen
	binary.BigEndian.PutUint32(frame[2:6], id)
	binary.BigEndian.PutUint16(frame[6:8], Checksum(frame[:6]))
	return frame
}

// BuildReadResponse returns the unescaped 12-byte response carrying value for
// a register id. The device side of the protocol; used by the simulator.
func BuildReadResponse(id uint32, value float32) []byte {
	frame := make([]byte, ResponseFrameSize)
	frame[0] = CmdReadResponse
	frame[1] = ResponsePayloadLen
	binary.BigEndian.PutUint32(frame[2:6], id)
	// The value's four bytes travel in reverse order relative to the rest of
	// the big-endian frame.
	binary.LittleEndian.PutUint32(frame[6:10], math.Float32bits(value))
	binary.BigEndian.PutUint16(frame[10:12], Checksum(frame[:10]))
	return frame
}

// Escape wire-encodes a frame: a leading start marker, then each frame byte,
// with occurrences of the start or escape byte prefixed by the escape byte.
// The leading marker itself is never escaped, which is what lets a receiver
// resynchronize on any bare start marker.
func Escape(frame []byte) []byte {
	escaped := make([]byte, 1, 1+len(frame)*2)
	escaped[0] = StartByte
	for _, b := range frame {
		if b == StartByte || b == EscapeByte {
			escaped = append(escaped, EscapeByte)
		}
		escaped = append(escaped, b)
	}
	return escaped
}

// EncodeReadRequest builds and escapes the read request for a register id,
// ready to hand to the connection.
func EncodeReadRequest(id uint32) []byte {
	return Escape(BuildReadRequest(id))
}

// RequestID extracts the register id embedded in an unescaped request frame.
func RequestID(frame []byte) uint32 {
	return binary.BigEndian.Uint32(frame[2:6])
}

// VerifyRequest checks the trailing CRC of an unescaped request frame. The
// device side of the protocol; used by the simulator.
func VerifyRequest(frame []byte) bool {
	if len(frame) != RequestFrameSize {
		return false
	}
	return Checksum(frame[:RequestFrameSize-2]) == binary.BigEndian.Uint16(frame[RequestFrameSize-2:])
}

// ResponseID extracts the register id embedded in an unescaped response frame.
func ResponseID(frame []byte) uint32 {
	return binary.BigEndian.Uint32(frame[2:6])
}

// ResponseValue decodes the floating value embedded in an unescaped response
// frame. The frame's CRC must already have been verified.
func ResponseValue(frame []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(frame[6:10]))
}

// VerifyResponse checks the trailing CRC of an unescaped response frame
// against a checksum of the bytes it covers.
func VerifyResponse(frame []byte) bool {
	if len(frame) != ResponseFrameSize {
		return false
	}
	return Checksum(frame[:ResponseFrameSize-2]) == binary.BigEndian.Uint16(frame[ResponseFrameSize-2:])
}
