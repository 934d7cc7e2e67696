package model

// CheckStatus is the outcome of a preflight check.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	CheckStatusError   CheckStatus = "error"
)

// CheckResult is a single preflight check reported by `doctor`, like the
// sandbox helper availability or the LLM API key.
type CheckResult struct {
	// ID is the stable check identifier, e.g. "sandbox_helper" or "llm_api_key".
	ID      string
	Message string
	Status  CheckStatus
}

// CountByStatus counts check results by status.
func CountByStatus(results []CheckResult) (ok, warnings, errors int) {
	for _, r := range results {
		switch r.Status {
		case CheckStatusOK:
			ok++
		case CheckStatusWarning:
			warnings++
		case CheckStatusError:
			errors++
		}
	}
	return ok, warnings, errors
}
