package api

import (
	"net/http"
	"time"

	"github.com/editgroups/editgroups/internal/services"
)

// ========== Query Types ==========

// BatchListQuery holds the filters of GET /api/batches.
type BatchListQuery struct {
	Tool string `validate:"omitempty,max=32,alphanum"`
	User string `validate:"omitempty,max=190,excludesall=0x7C[]{}"`
	Tag  string `validate:"omitempty,max=128"`
}

// ParseBatchListQuery reads the batch filters from the query string.
func ParseBatchListQuery(r *http.Request) BatchListQuery {
	q := r.URL.Query()
	return BatchListQuery{
		Tool: q.Get("tool"),
		User: q.Get("user"),
		Tag:  q.Get("tag"),
	}
}

// Filter converts the query to a service filter.
func (q BatchListQuery) Filter() services.BatchFilter {
	return services.BatchFilter{Tool: q.Tool, User: q.User, Tag: q.Tag}
}

// BatchPath identifies a batch in URLs: /api/batches/{tool}/{uid}.
type BatchPath struct {
	Tool string `validate:"required,max=32,alphanum"`
	UID  string `validate:"required,max=190,alphanum"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Response Types ==========

// ToolResponse is the public view of a tool. Patterns are not exposed.
type ToolResponse struct {
	Name    string `json:"name"`
	ShortID string `json:"shortid"`
	URL     string `json:"url"`
}

// TagResponse is a tag with the label to show for it. Tags with an empty
// display name are not meant to be shown.
type TagResponse struct {
	ID          string `json:"id"`
	Priority    int    `json:"priority"`
	Color       string `json:"color"`
	DisplayName string `json:"display_name,omitempty"`
}

// BatchResponse is a batch as listed.
type BatchResponse struct {
	ID      uint          `json:"id"`
	Tool    ToolResponse  `json:"tool"`
	UID     string        `json:"uid"`
	FullUID string        `json:"full_uid"`
	User    string        `json:"user"`
	Summary string        `json:"summary"`
	Started time.Time     `json:"started"`
	Ended   time.Time     `json:"ended"`
	NbEdits int           `json:"nb_edits"`
	Tags    []TagResponse `json:"tags"`
	URL     string        `json:"url"`
}

// BatchDetailResponse is a batch with its statistics and its latest edits.
type BatchDetailResponse struct {
	BatchResponse
	services.BatchStats
	Edits []EditResponse `json:"edits"`
}

// EditResponse is an edit with its diff and undo links.
type EditResponse struct {
	ID            int64     `json:"id"`
	OldRevID      int64     `json:"oldrevid"`
	NewRevID      int64     `json:"newrevid"`
	OldLength     int       `json:"oldlength"`
	NewLength     int       `json:"newlength"`
	Timestamp     time.Time `json:"timestamp"`
	Title         string    `json:"title"`
	Namespace     int       `json:"namespace"`
	URI           string    `json:"uri"`
	Comment       string    `json:"comment"`
	ParsedComment string    `json:"parsedcomment"`
	Bot           bool      `json:"bot"`
	Minor         bool      `json:"minor"`
	Patrolled     bool      `json:"patrolled"`
	ChangeType    string    `json:"changetype"`
	User          string    `json:"user"`
	Reverted      bool      `json:"reverted"`
	URL           string    `json:"url"`
	RevertURL     string    `json:"revert_url"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
