package store

import (
	"slices"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
)

// MetadataKey is the metadata field that holds reconciliation state
const MetadataKey = "reconciliation"

// Allows reports whether a record in state current, carrying link, may
// receive the patch. A manual link is never replaced.
func (p Patch) Allows(current candidate.State, link *candidate.Link) bool {
	if link != nil && (link.Manual || link.MatchType == candidate.MatchTypeManual) {
		return false
	}
	if len(p.ExpectStates) == 0 {
		return true
	}
	return slices.Contains(p.ExpectStates, current)
}

// Merge returns a copy of metadata with the patch recorded under
// MetadataKey. Every other field is left untouched.
func (p Patch) Merge(metadata map[string]any) map[string]any {
	merged := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}

	entry := map[string]any{
		"state":      string(p.State),
		"confidence": p.Confidence,
		"timestamp":  p.Timestamp.UTC().Format(time.RFC3339),
	}
	if p.Reason != "" {
		entry["reason"] = p.Reason
	}
	if p.RunID != "" {
		entry["run_id"] = p.RunID
	}
	if p.Link != nil {
		entry["link"] = map[string]any{
			"counterpart_id":     p.Link.CounterpartID,
			"counterpart_source": string(p.Link.CounterpartSource),
			"match_type":         string(p.Link.MatchType),
			"confidence":         p.Link.Confidence,
			"linked_at":          p.Link.LinkedAt.UTC().Format(time.RFC3339),
		}
	}
	merged[MetadataKey] = entry

	return merged
}
