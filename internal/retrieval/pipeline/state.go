package pipeline

import (
	"fmt"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// Phase is where a deal currently sits in the pipeline.
type Phase string

const (
	PhasePending    Phase = "PENDING"
	PhaseExcluded   Phase = "EXCLUDED"
	PhaseSearching  Phase = "SEARCHING"
	PhaseEvaluating Phase = "EVALUATING"
	PhaseFetching   Phase = "FETCHING"
	PhaseDone       Phase = "DONE"
)

// Signal is the outcome of the work performed in a phase.
type Signal string

const (
	SignalExcluded        Signal = "excluded"
	SignalActive          Signal = "active"
	SignalCandidates      Signal = "candidates_found"
	SignalSearchExhausted Signal = "search_exhausted"
	SignalDownloadVerdict Signal = "download_verdict"
	SignalSkipVerdict     Signal = "skip_verdict"
	SignalFetchSuccess    Signal = "fetch_success"
	SignalFetchFailed     Signal = "fetch_failed"
	SignalResumeSearch    Signal = "resume_search"
)

// State is the full machine state for one deal: the phase plus, once the
// phase is terminal, the final status.
type State struct {
	Phase  Phase
	Status domain.Status
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseExcluded
}

// Next is the transition function: a pure mapping of (state, signal) to the
// next state. Invalid combinations return an error so a programming mistake
// in the runner surfaces instead of silently looping a deal.
func Next(s State, sig Signal) (State, error) {
	if s.Terminal() {
		return s, fmt.Errorf("transition %q from terminal state %s/%s", sig, s.Phase, s.Status)
	}

	switch s.Phase {
	case PhasePending:
		switch sig {
		case SignalExcluded:
			return State{Phase: PhaseExcluded, Status: domain.StatusAlreadyProcessed}, nil
		case SignalActive:
			return State{Phase: PhaseSearching}, nil
		}

	case PhaseSearching:
		switch sig {
		case SignalCandidates:
			return State{Phase: PhaseEvaluating}, nil
		case SignalSearchExhausted:
			return State{Phase: PhaseDone, Status: domain.StatusNotFound}, nil
		case SignalFetchFailed:
			// A resorted deal whose fresh search found no alternate locator
			// ends as a fetch failure: the verdict exists, the document just
			// could not be retrieved.
			return State{Phase: PhaseDone, Status: domain.StatusFetchFailed}, nil
		}

	case PhaseEvaluating:
		switch sig {
		case SignalDownloadVerdict:
			return State{Phase: PhaseFetching}, nil
		case SignalSkipVerdict:
			return State{Phase: PhaseDone, Status: domain.StatusSkipped}, nil
		}

	case PhaseFetching:
		switch sig {
		case SignalFetchSuccess:
			return State{Phase: PhaseDone, Status: domain.StatusDownloaded}, nil
		case SignalFetchFailed:
			return State{Phase: PhaseDone, Status: domain.StatusFetchFailed}, nil
		case SignalResumeSearch:
			// Cross-strategy resort: a dead locator sends the deal back to
			// search with its remaining strategies.
			return State{Phase: PhaseSearching}, nil
		}
	}

	return s, fmt.Errorf("disallowed transition: %s + %q", s.Phase, sig)
}
