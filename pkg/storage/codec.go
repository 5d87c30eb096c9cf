package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
)

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// ageKey encodes a round count so checkpoints sort by age.
func ageKey(age int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(age))
	return k[:]
}
