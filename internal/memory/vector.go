package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

const vectorHeaderSize = 4

// encodeVector packs a float32 vector into a blob:
// [4-byte LE dimension][N x 4-byte LE float32].
func encodeVector(vector []float32) ([]byte, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("encode vector: empty vector")
	}

	blob := make([]byte, 0, vectorHeaderSize+4*len(vector))
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(vector)))
	for i, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("encode vector: invalid value at index %d", i)
		}
		blob = binary.LittleEndian.AppendUint32(blob, math.Float32bits(v))
	}
	return blob, nil
}

// decodeVector unpacks a blob created by encodeVector.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob) < vectorHeaderSize {
		return nil, fmt.Errorf("decode vector: blob too short: %d bytes", len(blob))
	}
	dim := int(binary.LittleEndian.Uint32(blob[:vectorHeaderSize]))
	if dim <= 0 || len(blob) != vectorHeaderSize+4*dim {
		return nil, fmt.Errorf("decode vector: dimension %d does not match payload %d", dim, len(blob)-vectorHeaderSize)
	}

	vector := make([]float32, dim)
	for i := range vector {
		off := vectorHeaderSize + 4*i
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off : off+4]))
	}
	return vector, nil
}

// cosineSimilarity scores two vectors in [-1, 1].
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity: dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("cosine similarity: zero vector")
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, score)), nil
}
