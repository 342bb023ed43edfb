package domain

// ResultKind classifies the outcome of one estimation.
type ResultKind int

const (
	ResultFoodEstimate ResultKind = iota
	ResultNoFood
	ResultTimedOut
	ResultProviderError
)

func (k ResultKind) String() string {
	switch k {
	case ResultFoodEstimate:
		return "food_estimate"
	case ResultNoFood:
		return "no_food"
	case ResultTimedOut:
		return "timed_out"
	default:
		return "provider_error"
	}
}

// AnalysisResult is the classified model response for one turn.
type AnalysisResult struct {
	Kind     ResultKind
	Source   InputKind
	Estimate string // model output verbatim, set for ResultFoodEstimate
	Err      error  // set for ResultTimedOut and ResultProviderError
}
