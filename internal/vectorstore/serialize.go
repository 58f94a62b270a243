package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// index file layout: magic, uint32 dimension, uint32 count, then
// count*dimension little-endian IEEE 754 float32 values.
var indexMagic = [4]byte{'R', 'V', 'I', '1'}

// EncodeIndex serializes a uniform-dimension vector set into the index file
// format.
func EncodeIndex(dim int, vectors [][]float32) []byte {
	buf := make([]byte, 0, 12+len(vectors)*dim*4)
	buf = append(buf, indexMagic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vectors)))
	for _, vec := range vectors {
		for _, v := range vec {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf
}

// DecodeIndex parses an index file produced by EncodeIndex.
func DecodeIndex(data []byte) (dim int, vectors [][]float32, err error) {
	if len(data) < 12 {
		return 0, nil, fmt.Errorf("index file too short: %d bytes", len(data))
	}
	if [4]byte(data[:4]) != indexMagic {
		return 0, nil, fmt.Errorf("bad index file magic %q", data[:4])
	}
	dim = int(binary.LittleEndian.Uint32(data[4:8]))
	count := int(binary.LittleEndian.Uint32(data[8:12]))

	body := data[12:]
	if len(body) != count*dim*4 {
		return 0, nil, fmt.Errorf("index file body is %d bytes, expected %d", len(body), count*dim*4)
	}

	vectors = make([][]float32, count)
	off := 0
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(body[off:]))
			off += 4
		}
		vectors[i] = vec
	}
	return dim, vectors, nil
}
