// Package similarity finds the stored claim closest to a query embedding.
package similarity

import (
	"math"

	"github.com/ppiankov/verifact/internal/model"
)

// Match is the best candidate for a query
type Match struct {
	Entry *model.FactCheckEntry
	Score float64
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors of different length or zero norm score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}

	// sqrt(x*x) == x in IEEE arithmetic, so identical vectors score exactly 1
	s := dot / math.Sqrt(na*nb)
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// better reports whether (score, id) beats the current best. Ties go to the
// higher id, i.e. the more recently inserted entry.
func better(score float64, id int64, best Match) bool {
	if best.Entry == nil {
		return true
	}
	if score != best.Score {
		return score > best.Score
	}
	return id > best.Entry.ID
}

// FindBestMatch returns the candidate with the highest cosine similarity to
// query. The second result is false when candidates is empty.
func FindBestMatch(query []float32, candidates []*model.FactCheckEntry) (Match, bool) {
	var best Match
	for _, c := range candidates {
		if c == nil {
			continue
		}
		score := Cosine(query, c.Embedding)
		if better(score, c.ID, best) {
			best = Match{Entry: c, Score: score}
		}
	}
	return best, best.Entry != nil
}
