package model

import "time"

// CacheEntry is a cached language model response addressed by the hash of the prompt.
type CacheEntry struct {
	Key string
	// Prompt is a truncated copy of the prompt, only for diagnostics.
	Prompt    string
	Response  string
	Model     string
	CreatedAt time.Time
}

// IsFresh returns true if the entry is younger than the freshness window at the given time.
func (c CacheEntry) IsFresh(now time.Time, window time.Duration) bool {
	return now.Sub(c.CreatedAt) < window
}
