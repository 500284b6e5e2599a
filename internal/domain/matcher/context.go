package matcher

import "github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"

// RunContext tracks which candidates a run has already claimed. One
// context per run; it is passed to every strategy call.
type RunContext struct {
	claimed map[string]candidate.MatchType
}

// NewRunContext creates an empty run context
func NewRunContext() *RunContext {
	return &RunContext{claimed: make(map[string]candidate.MatchType)}
}

// IsClaimed reports whether key was claimed earlier in the run
func (rc *RunContext) IsClaimed(key string) bool {
	_, ok := rc.claimed[key]
	return ok
}

// Claim takes every key or none. It returns false if any key was already
// claimed.
func (rc *RunContext) Claim(by candidate.MatchType, keys ...string) bool {
	for _, k := range keys {
		if rc.IsClaimed(k) {
			return false
		}
	}
	for _, k := range keys {
		rc.claimed[k] = by
	}
	return true
}

// ClaimedBy returns the match type that claimed key
func (rc *RunContext) ClaimedBy(key string) (candidate.MatchType, bool) {
	mt, ok := rc.claimed[key]
	return mt, ok
}

// Len returns the number of claimed keys
func (rc *RunContext) Len() int {
	return len(rc.claimed)
}
