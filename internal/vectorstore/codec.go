package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Binary index layout: a little-endian uint32 row count N, a
// little-endian uint32 dimension D, followed by N*D little-endian
// float64 values in row-major order.

func encodeMatrix(v [][]float64, dim int) []byte {
	n := len(v)
	buf := make([]byte, 8+n*dim*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dim))
	off := 8
	for _, row := range v {
		for _, x := range row {
			binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(x))
			off += 8
		}
	}
	return buf
}

func decodeMatrix(buf []byte) ([][]float64, int, error) {
	if len(buf) < 8 {
		return nil, 0, fmt.Errorf("vector index truncated: %d bytes", len(buf))
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	dim := int(binary.LittleEndian.Uint32(buf[4:8]))
	want := 8 + n*dim*8
	if len(buf) != want {
		return nil, 0, fmt.Errorf("vector index length mismatch: have %d want %d", len(buf), want)
	}

	v := make([][]float64, n)
	off := 8
	for i := 0; i < n; i++ {
		row := make([]float64, dim)
		for j := 0; j < dim; j++ {
			row[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))
			off += 8
		}
		v[i] = row
	}
	return v, dim, nil
}
