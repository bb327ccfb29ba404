// internal/utils/binary/binary.go
package binary

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
)

// ErrShortBuffer возвращается, когда поле выходит за пределы буфера
var ErrShortBuffer = fmt.Errorf("buffer too short")

// CheckLen verifies that data holds n bytes starting at offset.
func CheckLen(data []byte, offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, offset, len(data))
	}
	return nil
}

// ReadUint64LittleEndian reads a uint64 from a byte slice in little-endian format
func ReadUint64LittleEndian(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset : offset+8])
}

// ReadInt64LittleEndian reads an int64 from a byte slice in little-endian format
func ReadInt64LittleEndian(data []byte, offset int) int64 {
	return int64(binary.LittleEndian.Uint64(data[offset : offset+8]))
}

// ReadFloat64LittleEndian reads an IEEE-754 float64 stored little-endian
func ReadFloat64LittleEndian(data []byte, offset int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(data[offset : offset+8]))
}

// ReadUint32LittleEndian reads a uint32 from a byte slice in little-endian format
func ReadUint32LittleEndian(data []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(data[offset : offset+4])
}

// ReadUint8 reads a uint8 (byte) from a byte slice
func ReadUint8(data []byte, offset int) uint8 {
	return data[offset]
}

// ReadPubKey reads a Solana public key from a byte slice
func ReadPubKey(data []byte, offset int) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[offset : offset+solana.PublicKeyLength])
}

// WriteUint64LittleEndian writes a uint64 to a byte slice in little-endian format
func WriteUint64LittleEndian(val uint64, data []byte, offset int) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], val)
}

// WriteInt64LittleEndian writes an int64 to a byte slice in little-endian format
func WriteInt64LittleEndian(val int64, data []byte, offset int) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], uint64(val))
}

// WriteFloat64LittleEndian writes a float64 to a byte slice in little-endian format
func WriteFloat64LittleEndian(val float64, data []byte, offset int) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], math.Float64bits(val))
}

// WriteUint32LittleEndian writes a uint32 to a byte slice in little-endian format
func WriteUint32LittleEndian(val uint32, data []byte, offset int) {
	binary.LittleEndian.PutUint32(data[offset:offset+4], val)
}

// WriteUint8 writes a uint8 (byte) to a byte slice
func WriteUint8(val uint8, data []byte, offset int) {
	data[offset] = val
}

// WritePubKey writes a Solana public key to a byte slice
func WritePubKey(key solana.PublicKey, data []byte, offset int) {
	copy(data[offset:offset+solana.PublicKeyLength], key[:])
}
