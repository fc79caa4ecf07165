package ingest

import "fmt"

// Stats counts what happened to the records of one or more chunks.
type Stats struct {
	Records        int `json:"records"`
	ParseErrors    int `json:"parse_errors"`
	Unmatched      int `json:"unmatched"`
	Hijacked       int `json:"hijacked"`
	Duplicates     int `json:"duplicates"`
	EditsCreated   int `json:"edits_created"`
	BatchesTouched int `json:"batches_touched"`
	TagsAdded      int `json:"tags_added"`
	RevertMarkers  int `json:"revert_markers"`
	EditsReverted  int `json:"edits_reverted"`
}

// Add merges other into s.
func (s *Stats) Add(other Stats) {
	s.Records += other.Records
	s.ParseErrors += other.ParseErrors
	s.Unmatched += other.Unmatched
	s.Hijacked += other.Hijacked
	s.Duplicates += other.Duplicates
	s.EditsCreated += other.EditsCreated
	s.BatchesTouched += other.BatchesTouched
	s.TagsAdded += other.TagsAdded
	s.RevertMarkers += other.RevertMarkers
	s.EditsReverted += other.EditsReverted
}

func (s Stats) String() string {
	return fmt.Sprintf("%d records, %d edits created in %d batches, %d duplicates, %d unmatched, %d hijacked, %d parse errors, %d tags added, %d edits reverted",
		s.Records, s.EditsCreated, s.BatchesTouched, s.Duplicates, s.Unmatched, s.Hijacked, s.ParseErrors, s.TagsAdded, s.EditsReverted)
}
