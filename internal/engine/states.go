package engine

import "github.com/ppiankov/verifact/internal/model"

// Every threshold comparison below is inclusive at the lower bound.

// ClassifyStore decides STORE_HIT or STORE_MISS for a best similarity score
func ClassifyStore(score, matchThreshold float64) model.State {
	if score >= matchThreshold {
		return model.StateStoreHit
	}
	return model.StateStoreMiss
}

// ClassifyImage decides STORE_HIT or STORE_MISS for a combined hash
// distance. Smaller is closer.
func ClassifyImage(distance, bound int) model.State {
	if distance <= bound {
		return model.StateStoreHit
	}
	return model.StateStoreMiss
}

// ClassifyAI decides whether an AI answer is returned as is
func ClassifyAI(confidence, returnThreshold float64) model.State {
	if confidence >= returnThreshold {
		return model.StateAIConfident
	}
	return model.StateAILowConfidence
}

// ClassifyLearn decides whether an AI answer is written back. UNVERIFIED
// answers are never learned.
func ClassifyLearn(confidence, learnThreshold float64, verdict model.Verdict) model.State {
	if confidence >= learnThreshold && verdict.Valid() && verdict != model.VerdictUnverified {
		return model.StateLearn
	}
	return model.StateSkipLearn
}
