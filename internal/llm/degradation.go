package llm

// Degradation records that an optional LLM-backed step fell back to a safe
// default. It is a value, not an error: the pipeline logs it and moves on,
// and the caller never sees the failure.
type Degradation struct {
	Stage string
	Cause error
}

const (
	StageRouting      = "routing"
	StageVerification = "verification"
	StageNarration    = "narration"
)

func degraded(stage string, cause error) *Degradation {
	return &Degradation{Stage: stage, Cause: cause}
}
