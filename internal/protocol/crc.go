package protocol

// Checksum computes the CRC-16-CCITT checksum (init 0xFFFF, poly 0x1021,
// MSB first) over data. Requests append it over bytes [0..5]; responses are
// verified with it over bytes [0..9].
func Checksum(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
