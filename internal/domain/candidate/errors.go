package candidate

import "fmt"

// ValidationError reports a raw record that cannot become a Candidate
type ValidationError struct {
	Source   Source
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("invalid %s record %s: %s %s", e.Source, id, e.Field, e.Reason)
}
