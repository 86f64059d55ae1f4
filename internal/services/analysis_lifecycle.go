package services

import "crop-claim-service/internal/models"

// AnalysisLifecycle sequences one analysis at a time: Idle, Requesting, then
// Succeeded or Failed. Each Start or Reset opens a new generation, and a completion
// carrying an older generation is dropped. Not safe for concurrent use; the owning
// Session serialises access.
type AnalysisLifecycle struct {
	generation uint64
	state      models.AnalysisState
}

// Start moves Idle (or a finished attempt) to Requesting and returns the generation
// the eventual Resolve or Reject must present.
func (l *AnalysisLifecycle) Start(imageSelected bool) (uint64, error) {
	if !imageSelected {
		return 0, ErrNoImageSelected
	}
	if l.state.IsLoading {
		return 0, ErrAnalysisInFlight
	}

	l.generation++
	l.state = models.AnalysisState{IsLoading: true}
	return l.generation, nil
}

func (l *AnalysisLifecycle) Resolve(generation uint64, result models.AnalysisResult) bool {
	if !l.accepts(generation) {
		return false
	}
	l.state = models.AnalysisState{Result: &result}
	return true
}

func (l *AnalysisLifecycle) Reject(generation uint64, message string) bool {
	if !l.accepts(generation) {
		return false
	}
	l.state = models.AnalysisState{Error: &message}
	return true
}

// Reset returns to Idle from any state and orphans whatever is in flight.
func (l *AnalysisLifecycle) Reset() {
	l.generation++
	l.state = models.IdleAnalysisState()
}

func (l *AnalysisLifecycle) accepts(generation uint64) bool {
	return l.state.IsLoading && generation == l.generation
}

// State returns a copy that shares nothing with the lifecycle.
func (l *AnalysisLifecycle) State() models.AnalysisState {
	out := models.AnalysisState{IsLoading: l.state.IsLoading}
	if l.state.Error != nil {
		msg := *l.state.Error
		out.Error = &msg
	}
	if l.state.Result != nil {
		r := *l.state.Result
		out.Result = &r
	}
	return out
}

func (l *AnalysisLifecycle) Result() *models.AnalysisResult {
	return l.State().Result
}

func (l *AnalysisLifecycle) InFlight() bool {
	return l.state.IsLoading
}

// restore seeds a finished state loaded from a snapshot. An attempt that was in
// flight when the snapshot was taken cannot complete any more and comes back idle.
func (l *AnalysisLifecycle) restore(state models.AnalysisState) {
	l.generation++
	switch {
	case state.Result != nil:
		l.state = models.AnalysisState{Result: state.Result}
	case state.Error != nil:
		l.state = models.AnalysisState{Error: state.Error}
	default:
		l.state = models.IdleAnalysisState()
	}
}
