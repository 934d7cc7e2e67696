package llm

import "strings"

// Deterministic texts returned when the backend can't produce a completion.
const (
	FallbackCommands = "# Unable to generate commands at this time\necho 'LLM unavailable'"
	FallbackText     = "Unable to process request. LLM service unavailable."
)

// Fallback returns the fallback text for the prompt.
func Fallback(prompt string) string {
	if strings.Contains(strings.ToLower(prompt), "commands") {
		return FallbackCommands
	}
	return FallbackText
}

// IsFallback returns true if the response is one of the fallback texts.
func IsFallback(response string) bool {
	return response == FallbackCommands || response == FallbackText
}
