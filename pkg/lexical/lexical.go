// Package lexical implements the degraded-mode similarity signal: cosine
// similarity over term-frequency vectors. It is fully deterministic and has
// no external dependencies, so it is always available when the embedding
// backend is not.
package lexical

import (
	"math"
	"strings"
)

// Vector is a sparse term-frequency vector keyed by normalized term.
type Vector map[string]float64

// Vectorize builds a normalized term-frequency vector for text. Terms are
// lowercased whitespace tokens with leading/trailing punctuation stripped.
func Vectorize(text string) Vector {
	v := make(Vector)
	for _, tok := range strings.Fields(text) {
		term := normalizeTerm(tok)
		if term == "" {
			continue
		}
		v[term]++
	}
	return v
}

// Cosine returns the cosine similarity of two term-frequency vectors,
// clamped to [0,1]. Either vector being empty yields 0.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// Iterate the smaller map.
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	if dot == 0 {
		return 0
	}
	sim := dot / (norm(a) * norm(b))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Similarity is a convenience wrapper vectorizing both texts.
func Similarity(a, b string) float64 {
	return Cosine(Vectorize(a), Vectorize(b))
}

func norm(v Vector) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

func normalizeTerm(tok string) string {
	return strings.Trim(strings.ToLower(tok), ".,;:!?()[]{}\"'")
}
