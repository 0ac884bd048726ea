// Package imagehash computes 64-bit perceptual fingerprints and finds the
// closest known image.
package imagehash

import (
	"fmt"
	"math/bits"
	"strconv"

	"github.com/ppiankov/verifact/internal/model"
)

// Bits is the width of every perceptual hash
const Bits = 64

// Hash is a 64-bit perceptual hash
type Hash uint64

// Hex returns the 16-character lowercase hex form
func (h Hash) Hex() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ParseHex parses a 16-character hex hash
func ParseHex(s string) (Hash, error) {
	if len(s) != model.HashHexLen {
		return 0, fmt.Errorf("hash %q has length %d, want %d", s, len(s), model.HashHexLen)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return Hash(v), nil
}

// Distance is the Hamming distance between two hashes, in [0, 64]
func Distance(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// Mode selects how the three channel distances combine
type Mode string

const (
	ModeAverage Mode = "average"
	ModeMinimum Mode = "minimum"
)

// Triplet holds the three fingerprints of one image
type Triplet struct {
	P Hash // DCT-based
	D Hash // gradient
	A Hash // mean
}

// Distance averages the three channel distances, rounding half up
func (t Triplet) Distance(other Triplet) int {
	return t.DistanceMode(other, ModeAverage)
}

// DistanceMode combines the channel distances with mode
func (t Triplet) DistanceMode(other Triplet, mode Mode) int {
	dp := Distance(t.P, other.P)
	dd := Distance(t.D, other.D)
	da := Distance(t.A, other.A)

	if mode == ModeMinimum {
		return min(dp, dd, da)
	}
	return (dp + dd + da + 1) / 3
}

// FromEntry parses the hex hashes of a stored entry
func FromEntry(e *model.ImageFingerprintEntry) (Triplet, error) {
	p, err := ParseHex(e.PHash)
	if err != nil {
		return Triplet{}, fmt.Errorf("phash: %w", err)
	}
	d, err := ParseHex(e.DHash)
	if err != nil {
		return Triplet{}, fmt.Errorf("dhash: %w", err)
	}
	a, err := ParseHex(e.AHash)
	if err != nil {
		return Triplet{}, fmt.Errorf("ahash: %w", err)
	}
	return Triplet{P: p, D: d, A: a}, nil
}

// Apply writes the triplet's hex hashes into e
func (t Triplet) Apply(e *model.ImageFingerprintEntry) {
	e.PHash = t.P.Hex()
	e.DHash = t.D.Hex()
	e.AHash = t.A.Hex()
}

// Confidence maps an averaged distance to [0, 1]
func Confidence(distance int) float64 {
	if distance <= 0 {
		return 1
	}
	if distance >= Bits {
		return 0
	}
	return 1 - float64(distance)/Bits
}
