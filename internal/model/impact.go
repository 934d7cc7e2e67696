package model

// Severity is the estimated impact of a file change.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Impact is the classification of a file change.
type Impact struct {
	Severity           Severity `json:"severity"`
	AffectedComponents []string `json:"affected_components"`
	RequiredActions    []string `json:"required_actions"`
}

// DefaultImpact is the impact used when the classification can't be obtained.
func DefaultImpact() Impact {
	return Impact{
		Severity:           SeverityLow,
		AffectedComponents: []string{},
		RequiredActions:    []string{},
	}
}

// Analysis is the result of a full project analysis.
type Analysis struct {
	Insights    []string `json:"insights"`
	Suggestions []string `json:"suggestions"`
	Priorities  []string `json:"priorities"`
	Risks       []string `json:"risks"`
}

// DefaultAnalysis is the analysis used when the project analysis can't be obtained.
func DefaultAnalysis() Analysis {
	return Analysis{
		Insights:    []string{},
		Suggestions: []string{},
		Priorities:  []string{},
		Risks:       []string{},
	}
}
