package embedding

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeVector serializes a vector as little-endian float32 for cache
// storage.
func EncodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector encoding: %d bytes", len(b))
	}
	out := make([]float32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &out); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return out, nil
}
