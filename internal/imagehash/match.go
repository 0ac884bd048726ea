package imagehash

import "github.com/ppiankov/verifact/internal/model"

// ImageMatch is the closest known image for a query
type ImageMatch struct {
	Entry    *model.ImageFingerprintEntry
	Distance int
}

// FindBestImageMatch returns the candidate with the smallest combined
// distance to query. Ties go to the higher id. Entries with unparseable
// hashes are skipped.
func FindBestImageMatch(query Triplet, candidates []*model.ImageFingerprintEntry, mode Mode) (ImageMatch, bool) {
	var best ImageMatch
	for _, c := range candidates {
		if c == nil {
			continue
		}
		t, err := FromEntry(c)
		if err != nil {
			continue
		}
		d := query.DistanceMode(t, mode)
		if best.Entry == nil || d < best.Distance || (d == best.Distance && c.ID > best.Entry.ID) {
			best = ImageMatch{Entry: c, Distance: d}
		}
	}
	return best, best.Entry != nil
}
