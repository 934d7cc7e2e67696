package project

import (
	"sync"
	"time"

	"github.com/slok/iacore/internal/model"
)

// State is the shared knowledge of the project, safe for concurrent use.
type State struct {
	root         string
	projectType  string
	analysis     model.Analysis
	lastAnalysis time.Time
	mu           sync.RWMutex
}

// NewState returns the state of a project never analyzed.
func NewState(root string) *State {
	return &State{
		root:        root,
		projectType: TypeUnknown,
		analysis:    model.DefaultAnalysis(),
	}
}

// Root returns the project root directory.
func (s *State) Root() string { return s.root }

// Type returns the detected project type.
func (s *State) Type() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectType
}

// SetType sets the detected project type.
func (s *State) SetType(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectType = t
}

// Analysis returns the latest analysis and when it was made, a zero time means
// the project was never analyzed.
func (s *State) Analysis() (model.Analysis, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analysis, s.lastAnalysis
}

// SetAnalysis stores a new analysis made at the given time.
func (s *State) SetAnalysis(a model.Analysis, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = a
	s.lastAnalysis = at
}

// ShouldReanalyze returns true if the project was never analyzed or the last
// analysis is older than interval.
func (s *State) ShouldReanalyze(now time.Time, interval time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAnalysis.IsZero() || now.Sub(s.lastAnalysis) > interval
}
