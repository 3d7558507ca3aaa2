package match

import "math"

// CosineDistance reports how far apart two embeddings point: 1 minus their
// cosine similarity, so 0 is the same direction and 2 is opposite. Length
// mismatches, empty input and zero vectors all count as maximally far, which
// keeps a malformed record from ever matching anything.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 2.0
	}

	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 2.0
	}

	sim := dot / math.Sqrt(na*nb)
	// Rounding can push the ratio a hair outside the valid range.
	sim = math.Max(-1, math.Min(1, sim))
	return 1 - sim
}
