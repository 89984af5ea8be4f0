package protocol

import "testing"

func TestChecksumKnownValue(t *testing.T) {
	// Standard CRC-16/CCITT-FALSE check value
	if got := Checksum([]byte("123456789")); got != 0x29B1 {
		t.Errorf("Checksum(\"123456789\") = 0x%04X, want 0x29B1", got)
	}
}

func TestChecksumEmptyInput(t *testing.T) {
	if got := Checksum(nil); got != crcInitial {
		t.Errorf("Checksum(nil) = 0x%04X, want initial register 0x%04X", got, crcInitial)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	data := []byte{0x01, 0x04, 0x95, 0x99, 0x30, 0xBF}

	first := Checksum(data)
	for i := 0; i < 10; i++ {
		if got := Checksum(data); got != first {
			t.Fatalf("Checksum not deterministic: 0x%04X then 0x%04X", first, got)
		}
	}
}

func TestChecksumDetectsSingleBitFlips(t *testing.T) {
	// No single-bit corruption anywhere in a response's covered bytes may
	// leave the checksum unchanged.
	frame := BuildReadResponse(0x959930BF, 1234.5)
	covered := frame[:ResponseFrameSize-2]
	reference := Checksum(covered)

	for byteIdx := range covered {
		for bit := 0; bit < 8; bit++ {
			corrupted := make([]byte, len(covered))
			copy(corrupted, covered)
			corrupted[byteIdx] ^= 1 << bit

			if Checksum(corrupted) == reference {
				t.Errorf("bit flip at byte %d bit %d not detected", byteIdx, bit)
			}
		}
	}
}
