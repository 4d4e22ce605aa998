package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashEmbedder produces deterministic unit-length vectors derived from
// a SHA-256 of the input text. Identical texts always embed to the same
// vector, so similarity ordering is stable across runs without any
// network dependency.
type HashEmbedder struct {
	// Dimension of the produced vectors. Zero means 768.
	Dimension int

	// Err, when set, is returned by every Embed call.
	Err error
}

// Embed implements the index embedder boundary.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if h.Err != nil {
		return nil, h.Err
	}
	dim := h.Dimension
	if dim == 0 {
		dim = 768
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text, dim)
	}
	return vectors, nil
}

func hashVector(text string, dim int) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)

	// Stretch the digest over the full dimension by rehashing with a
	// counter, then normalize to unit length.
	var norm float64
	buf := make([]byte, len(seed)+8)
	copy(buf, seed[:])
	for i := range vec {
		binary.LittleEndian.PutUint64(buf[len(seed):], uint64(i))
		h := sha256.Sum256(buf)
		v := float32(int32(binary.LittleEndian.Uint32(h[:4]))) / math.MaxInt32
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
