package wire

// CRC-8 parameters (CRC-8/SMBUS).
const (
	CRC8Polynomial   = 0x07
	CRC8InitialValue = 0x00
)

var crc8Table = makeCRC8Table(CRC8Polynomial)

func makeCRC8Table(poly byte) [256]byte {
	var table [256]byte
	for i := range table {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRC8 computes the frame checksum over the unescaped header and data.
func CRC8(data []byte) byte {
	crc := byte(CRC8InitialValue)
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}
