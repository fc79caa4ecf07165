// Package tagging extracts tags from edit comments. Tags are aggregated on
// batches and displayed by decreasing priority.
package tagging

import (
	"regexp"
	"strings"

	"github.com/editgroups/editgroups/internal/database"
)

// Default priorities of newly created tags. A tag that already exists keeps
// its stored priority and color.
const (
	ActionPriority   = 10
	LanguagePriority = 5
)

// LanguagePrefix starts the id of every language tag.
const LanguagePrefix = "lang-"

var (
	actionRe   = regexp.MustCompile(`^/\* ([a-z\-]+):`)
	languageRe = regexp.MustCompile(`^/\* wb[a-z\-]*:\d+\|([a-z\-]+) \*/`)
)

// Extract returns the tags found in a comment, with the defaults they get
// when created. At most one action tag and one language tag are returned.
func Extract(comment string) []database.Tag {
	var tags []database.Tag

	if m := actionRe.FindStringSubmatch(comment); m != nil {
		tags = append(tags, database.Tag{
			ID:       m[1],
			Priority: ActionPriority,
			Color:    database.DefaultTagColor,
		})
	}

	if m := languageRe.FindStringSubmatch(comment); m != nil {
		tags = append(tags, database.Tag{
			ID:       LanguagePrefix + m[1],
			Priority: LanguagePriority,
			Color:    database.LanguageTagColor,
		})
	}

	return tags
}

// ExtractIDs is Extract without the creation defaults.
func ExtractIDs(comment string) []string {
	tags := Extract(comment)
	ids := make([]string, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	return ids
}

// Missing filters extracted out to the tags not in known.
func Missing(extracted []database.Tag, known map[string]bool) []database.Tag {
	var missing []database.Tag
	for _, tag := range extracted {
		if !known[tag.ID] {
			missing = append(missing, tag)
		}
	}
	return missing
}

// DisplayName returns the text shown for a tag. An empty string means the
// tag is not displayed.
func DisplayName(id string) string {
	if name, ok := readableNames[id]; ok {
		return name
	}
	if strings.HasPrefix(id, LanguagePrefix) {
		return strings.TrimPrefix(id, LanguagePrefix)
	}
	return ""
}

var readableNames = map[string]string{
	"wbsetitem":                    "new items",
	"wbcreate-new":                 "new items",
	"wbcreateredirect":             "new redirects",
	"wbeditentity":                 "new items",
	"wbeditentity-create":          "new items",
	"wbeditentity-update":          "edits entities",
	"wbeditentity-override":        "clears items",
	"wbsetreference":               "sets references",
	"wbsetreference-add":           "adds references",
	"wbsetreference-set":           "changes references",
	"wbsetlabel-add":               "adds labels",
	"wbsetlabel-set":               "changes labels",
	"wbsetlabel-remove":            "removes labels",
	"wbsetdescription-add":         "adds descriptions",
	"wbsetdescription-set":         "changes descriptions",
	"wbsetdescription-remove":      "removes descriptions",
	"wbsetaliases-set":             "sets aliases",
	"wbsetaliases-add-remove":      "sets aliases",
	"wbsetaliases-add":             "sets aliases",
	"wbsetaliases-remove":          "removes aliases",
	"wbsetaliases-update":          "changes aliases",
	"wbsetlabeldescriptionaliases": "changes terms",
	"wbsetsitelink-add":            "adds sitelinks",
	"wbsetsitelink-add-both":       "adds sitelinks and badges",
	"wbsetsitelink-set":            "changes sitelinks",
	"wbsetsitelink-set-badges":     "changes badges",
	"wbsetsitelink-set-both":       "changes sitelinks and badges",
	"wbsetsitelink-remove":         "removes sitelinks",
	"wblinktitles-create":          "clears items",
	"wblinktitles-connect":         "new sitelinks",
	"wbcreateclaim-value":          "adds claims",
	"wbcreateclaim-novalue":        "new novalue claims",
	"wbcreateclaim-somevalue":      "new somevalue claims",
	"wbcreateclaim":                "adds claims",
	"wbcreateclaim-create":         "adds claims",
	"wbsetclaimvalue":              "changes claim values",
	"wbremoveclaims":               "removes claims",
	"wbremoveclaims-remove":        "removes claims",
	"wbremoveclaims-update":        "removes claims",
	"wbsetclaim-update":            "changes claims",
	"wbsetclaim-create":            "adds claims",
	"wbsetclaim-update-qualifiers": "changes qualifiers",
	"wbsetclaim-update-references": "changes references",
	"wbsetclaim-update-rank":       "changes ranks",
	"wbsetqualifier-add":           "adds qualifiers",
	"wbsetqualifier-update":        "changes qualifiers",
	"wbremovequalifiers-remove":    "removes qualifiers",
	"wbremovereferences-remove":    "removes references",
	"wbmergeitems-from":            "merges items",
	"wbmergeitems-to":              "merges items",
	"clientsitelink-update":        "sitelinks moved",
	"clientsitelink-remove":        "sitelinks deleted",
	"special-create-item":          "new items",
	"special-create-property":      "new properties",
	"undo":                         "undo",
}
