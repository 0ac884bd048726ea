package model

// Matched sources reported in a VerificationResult
const (
	MatchedStore      = "store"
	MatchedAI         = "ai"
	MatchedAIRejected = "ai-rejected"
)

// State is a step of the hybrid decision state machine
type State string

const (
	StateNormalize       State = "NORMALIZE"
	StateStoreLookup     State = "STORE_LOOKUP"
	StateStoreHit        State = "STORE_HIT"
	StateStoreMiss       State = "STORE_MISS"
	StateAIFallback      State = "AI_FALLBACK"
	StateAIConfident     State = "AI_CONFIDENT"
	StateAILowConfidence State = "AI_LOW_CONFIDENCE"
	StateLearn           State = "LEARN"
	StateSkipLearn       State = "SKIP_LEARN"
	StateRespond         State = "RESPOND"
)

// VerificationResult is produced per request and never shared across requests
type VerificationResult struct {
	RequestID      string  `json:"request_id"`
	Verdict        Verdict `json:"verdict"`
	Confidence     float64 `json:"confidence"`
	Explanation    string  `json:"explanation,omitempty"`
	MatchedSource  string  `json:"matched_source"`
	MatchedEntryID *int64  `json:"matched_entry_id,omitempty"`
	Language       string  `json:"language"`

	// Decision is the last deciding state before RESPOND (STORE_HIT, AI_CONFIDENT, ...)
	Decision State `json:"decision"`

	// Learn is LEARN when a writeback was scheduled, SKIP_LEARN otherwise.
	// Empty for store hits.
	Learn State `json:"learn,omitempty"`

	// Trail lists every state visited, ending with RESPOND
	Trail []State `json:"trail"`
}
