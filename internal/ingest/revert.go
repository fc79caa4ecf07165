package ingest

import (
	"regexp"
	"strconv"
)

var revertRe = regexp.MustCompile(`^/\* undo:0\|\|(\d+)\|`)

// RevertedRevision returns the revision undone by an edit with this
// comment, if the comment carries an undo marker.
func RevertedRevision(comment string) (int64, bool) {
	m := revertRe.FindStringSubmatch(comment)
	if m == nil {
		return 0, false
	}
	rev, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return rev, true
}

// revertSet collects the revisions undone within a chunk.
type revertSet struct {
	seen map[int64]bool
	ids  []int64
}

func (s *revertSet) add(rev int64) {
	if s.seen == nil {
		s.seen = make(map[int64]bool)
	}
	if s.seen[rev] {
		return
	}
	s.seen[rev] = true
	s.ids = append(s.ids, rev)
}
