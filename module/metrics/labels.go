package metrics

const (
	LabelVerifier = "verifier"
	LabelTrigger  = "trigger"
	LabelOutcome  = "outcome"
	LabelResult   = "result"
)
