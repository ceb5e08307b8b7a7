package chunk

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Chunk record encoding: payload | crc32c(payload), checksum big-endian.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorrupt reports a chunk whose stored checksum does not match its
// payload.
var ErrCorrupt = errors.New("chunk: corrupt record")

func encodeRecord(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(payload, castagnoli))
	return append(out, crcb[:]...)
}

func decodeRecord(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, ErrCorrupt
	}
	payload := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(payload, castagnoli) != expect {
		return nil, ErrCorrupt
	}
	return append([]byte(nil), payload...), nil
}
