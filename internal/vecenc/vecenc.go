// Package vecenc implements the binary codec for persisted vector blobs.
//
// A blob holds one partition's entire vector set: a little-endian header of
// row count and dimension (both int32), followed by the row-major float32
// matrix. The row count in the header is the source of truth a reader checks
// against the metadata blob before trusting an index version.
package vecenc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBlob is returned when a vector blob is truncated or malformed.
var ErrInvalidBlob = errors.New("invalid vector blob")

const headerSize = 8 // rows int32 + dim int32

// EncodeMatrix encodes a set of equal-dimension vectors into a single blob.
func EncodeMatrix(vectors [][]float32) ([]byte, error) {
	rows := len(vectors)
	if rows > math.MaxInt32 {
		return nil, fmt.Errorf("too many vectors: %d exceeds maximum", rows)
	}

	dim := 0
	if rows > 0 {
		dim = len(vectors[0])
	}
	if dim > math.MaxInt32 {
		return nil, fmt.Errorf("vector too large: %d elements exceeds maximum", dim)
	}

	buf := make([]byte, headerSize+rows*dim*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dim))

	off := headerSize
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}

	return buf, nil
}

// DecodeMatrix decodes a blob produced by EncodeMatrix.
func DecodeMatrix(data []byte) ([][]float32, error) {
	if len(data) < headerSize {
		return nil, ErrInvalidBlob
	}

	rows := int(int32(binary.LittleEndian.Uint32(data[0:4])))
	dim := int(int32(binary.LittleEndian.Uint32(data[4:8])))
	if rows < 0 || dim < 0 {
		return nil, ErrInvalidBlob
	}
	if len(data) != headerSize+rows*dim*4 {
		return nil, ErrInvalidBlob
	}

	vectors := make([][]float32, rows)
	off := headerSize
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vectors[i] = vec
	}

	return vectors, nil
}
