package database

import (
	"fmt"
	"net/url"
	"time"
)

// MaxCharFieldLength bounds the short text columns (titles, users, uids).
const MaxCharFieldLength = 190

// Tag colors (HTML coded, including hash)
const (
	DefaultTagColor  = "#939393"
	LanguageTagColor = "#3eabab"
)

// Tool is an automated editing tool, recognized from the ids it leaves in edit summaries.
// Tools are tried in Position order when classifying an edit.
type Tool struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:190;not null" json:"name"`
	ShortID  string `gorm:"column:shortid;uniqueIndex;size:32;not null" json:"shortid"`
	Position int    `gorm:"not null;default:0;index" json:"-"`

	IDRegex string `gorm:"column:idregex;size:190;not null" json:"-"`
	IDGroup int    `gorm:"column:idgroupid;not null" json:"-"`

	SummaryRegex string `gorm:"column:summaryregex;size:190;not null" json:"-"`
	SummaryGroup int    `gorm:"column:summarygroupid;not null" json:"-"`

	// Optional: recovers the real user when edits are proxied through a bot account
	UserRegex string `gorm:"column:userregex;size:190" json:"-"`
	UserGroup int    `gorm:"column:usergroupid" json:"-"`

	URL       string    `gorm:"size:200" json:"url"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Tool) TableName() string {
	return "tools"
}

func (t Tool) String() string {
	return t.Name
}

// Batch is a group of edits made by one user with one invocation of a tool.
// (ToolID, UID, User) is unique, and ingestion never lets two users share a (ToolID, UID).
type Batch struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	ToolID  uint      `gorm:"not null;uniqueIndex:idx_batch_tool_uid_user" json:"-"`
	UID     string    `gorm:"column:uid;size:190;not null;index;uniqueIndex:idx_batch_tool_uid_user" json:"uid"`
	User    string    `gorm:"size:190;not null;index;uniqueIndex:idx_batch_tool_uid_user" json:"user"`
	Summary string    `gorm:"size:190" json:"summary"`
	Started time.Time `gorm:"not null" json:"started"`
	Ended   time.Time `gorm:"not null;index" json:"ended"`
	NbEdits int       `gorm:"not null;default:0" json:"nb_edits"`

	Tool  Tool   `gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE" json:"tool"`
	Tags  []Tag  `gorm:"many2many:batch_tags;joinForeignKey:BatchID;joinReferences:TagID" json:"-"`
	Edits []Edit `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Batch) TableName() string {
	return "batches"
}

func (b Batch) String() string {
	return fmt.Sprintf("<Batch %s:%s by %s>", b.Tool.ShortID, b.UID, b.User)
}

// FullUID is the tool short id and the batch uid joined by a slash (e.g. "OR/ca7d7cc").
func (b Batch) FullUID() string {
	return b.Tool.ShortID + "/" + b.UID
}

// Duration is the time elapsed between the first and the last edit of the batch.
func (b Batch) Duration() time.Duration {
	return b.Ended.Sub(b.Started)
}

// Edit is a single edit as delivered by the upstream change feed.
// Its ID is assigned upstream, so ingesting the same event twice must not create a second row.
type Edit struct {
	ID            int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OldRevID      int64     `gorm:"column:oldrevid;not null;default:0" json:"oldrevid"`
	NewRevID      int64     `gorm:"column:newrevid;not null;index" json:"newrevid"`
	OldLength     int       `gorm:"column:oldlength;not null" json:"oldlength"`
	NewLength     int       `gorm:"column:newlength;not null" json:"newlength"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`
	Title         string    `gorm:"size:190;not null" json:"title"`
	Namespace     int       `gorm:"not null" json:"namespace"`
	URI           string    `gorm:"size:190" json:"uri"`
	Comment       string    `gorm:"type:text" json:"comment"`
	ParsedComment string    `gorm:"column:parsedcomment;type:text" json:"parsedcomment"`
	Bot           bool      `json:"bot"`
	Minor         bool      `json:"minor"`
	Patrolled     bool      `json:"patrolled"`
	ChangeType    string    `gorm:"column:changetype;size:32" json:"changetype"`
	User          string    `gorm:"size:190" json:"user"`

	// Inferred by ingestion
	BatchID  uint `gorm:"not null;index" json:"batch"`
	Reverted bool `gorm:"not null;default:false;index" json:"reverted"`
}

func (Edit) TableName() string {
	return "edits"
}

// URL is the diff link of the edit.
func (e Edit) URL() string {
	return fmt.Sprintf("https://www.wikidata.org/wiki/index.php?diff=%d&oldid=%d", e.NewRevID, e.OldRevID)
}

// RevertURL is the link undoing the edit.
func (e Edit) RevertURL() string {
	return fmt.Sprintf("https://www.wikidata.org/w/index.php?title=%s&action=edit&undoafter=%d&undo=%d",
		url.QueryEscape(e.Title), e.OldRevID, e.NewRevID)
}

func (e Edit) String() string {
	return fmt.Sprintf("<Edit %s >", e.URL())
}

// Tag represents a feature extracted from edits and aggregated at the level of batches.
type Tag struct {
	ID string `gorm:"primaryKey;size:128" json:"id"`
	// Introduces an ordering on tags, so that the most important get displayed first
	Priority int    `gorm:"not null;default:0" json:"priority"`
	Color    string `gorm:"size:32;not null;default:'#939393'" json:"color"`
}

func (Tag) TableName() string {
	return "tags"
}

// BatchTag is the join row between batches and tags. The composite key keeps
// a tag attached to a batch at most once.
type BatchTag struct {
	BatchID uint   `gorm:"primaryKey"`
	TagID   string `gorm:"primaryKey;size:128"`
}

func (BatchTag) TableName() string {
	return "batch_tags"
}
