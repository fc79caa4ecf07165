// Package registry classifies edits against the configured tools.
//
// A tool is described by up to three patterns applied to the edit comment:
// the id pattern (mandatory, yields the batch uid), the summary pattern
// (optional capture of a free-text description) and the user pattern
// (optional capture of the real user behind a bot account). All patterns
// match from the start of the comment.
package registry

import (
	"fmt"
	"regexp"

	"github.com/editgroups/editgroups/internal/database"
)

// Match is what a tool recognized in an edit.
type Match struct {
	UID     string
	User    string
	Summary string
}

// Matcher holds the compiled patterns of a single tool.
type Matcher struct {
	Tool database.Tool

	id      *regexp.Regexp
	summary *regexp.Regexp
	user    *regexp.Regexp
}

// NewMatcher compiles the patterns of a tool. It fails when a pattern does
// not compile or when a group index exceeds the number of groups.
func NewMatcher(tool database.Tool) (*Matcher, error) {
	m := &Matcher{Tool: tool}

	var err error
	if m.id, err = compileAnchored(tool.IDRegex, tool.IDGroup); err != nil {
		return nil, fmt.Errorf("tool %s: id pattern: %w", tool.ShortID, err)
	}
	if tool.SummaryRegex != "" {
		if m.summary, err = compileAnchored(tool.SummaryRegex, tool.SummaryGroup); err != nil {
			return nil, fmt.Errorf("tool %s: summary pattern: %w", tool.ShortID, err)
		}
	}
	if tool.UserRegex != "" {
		if m.user, err = compileAnchored(tool.UserRegex, tool.UserGroup); err != nil {
			return nil, fmt.Errorf("tool %s: user pattern: %w", tool.ShortID, err)
		}
	}

	return m, nil
}

// compileAnchored compiles pattern so that it only matches at the start of the input.
func compileAnchored(pattern string, group int) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, err
	}
	if group < 0 || group > re.NumSubexp() {
		return nil, fmt.Errorf("group %d out of range (pattern has %d groups)", group, re.NumSubexp())
	}
	return re, nil
}

// Match determines whether an edit with the supplied comment, made by user,
// came from this tool. A missing summary is not a failure; a matching user
// pattern overrides user.
func (m *Matcher) Match(user, comment string) (Match, bool) {
	idm := m.id.FindStringSubmatch(comment)
	if idm == nil {
		return Match{}, false
	}

	match := Match{UID: idm[m.Tool.IDGroup], User: user}

	if m.summary != nil {
		if sm := m.summary.FindStringSubmatch(comment); sm != nil {
			match.Summary = sm[m.Tool.SummaryGroup]
		}
	}

	if m.user != nil {
		if um := m.user.FindStringSubmatch(comment); um != nil {
			match.User = um[m.Tool.UserGroup]
		}
	}

	return match, true
}
