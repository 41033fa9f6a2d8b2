package models

// ResultSnapshot is the full persisted state of a grid run
type ResultSnapshot struct {
	Records        []ResultRecord
	Best           *ResultRecord
	HighPerformers []ResultRecord
}

// Len returns the number of records in the snapshot
func (s *ResultSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}
