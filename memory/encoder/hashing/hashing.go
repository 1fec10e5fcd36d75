// Package hashing implements a deterministic feature-hashing encoder.
//
// It needs no model weights, no network, and no warm-up: the same text maps
// to the same vector on every run and every machine, which is what lets
// embeddings be written to disk once and compared forever after.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions matches the all-MiniLM-L6-v2 embedding size so the
// encoder can be swapped for a real model without a schema change.
const DefaultDimensions = 384

// Encoder hashes token and character-trigram features into a fixed-size
// vector. Scores between encoded vectors reflect lexical overlap, not
// meaning: "wifi password" and "the wifi password is hunter2" land close,
// "wifi password" and "my cat's name" do not.
type Encoder struct {
	dimensions int
}

// New creates an encoder with DefaultDimensions.
func New() *Encoder {
	return &Encoder{
		dimensions: DefaultDimensions,
	}
}

// Encode converts text to a unit-length feature vector.
//
// Text with no tokens (empty, or punctuation only) encodes to the zero
// vector, which matches nothing.
func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	for _, token := range tokenize(text) {
		// Whole-token feature
		vec[e.bucket(token)] += 1.0

		// Overlapping character trigrams, weighted lower so shared
		// fragments help but full-word matches dominate.
		runes := []rune(token)
		for i := 0; i+3 <= len(runes); i++ {
			vec[e.bucket(string(runes[i:i+3]))] += 0.5
		}
	}

	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *Encoder) Dimensions() int {
	return e.dimensions
}

// bucket maps a feature string to a vector position.
func (e *Encoder) bucket(feature string) int {
	h := fnv.New32a()
	h.Write([]byte(feature))
	return int(h.Sum32() % uint32(e.dimensions))
}

// tokenize lowercases text, drops punctuation, and splits on whitespace.
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

// normalize converts the vector to unit length. The zero vector is
// returned unchanged.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}

	return vec
}
