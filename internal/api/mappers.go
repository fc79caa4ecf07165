package api

import (
	"fmt"
	"net/url"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/services"
	"github.com/editgroups/editgroups/internal/tagging"
)

// ToolToResponse converts a database Tool to its public view.
func ToolToResponse(t database.Tool) ToolResponse {
	return ToolResponse{
		Name:    t.Name,
		ShortID: t.ShortID,
		URL:     t.URL,
	}
}

// ToolsToResponses converts a slice of tools.
func ToolsToResponses(tools []database.Tool) []ToolResponse {
	items := make([]ToolResponse, len(tools))
	for i, t := range tools {
		items[i] = ToolToResponse(t)
	}
	return items
}

// TagToResponse converts a Tag and resolves its display name.
func TagToResponse(t database.Tag) TagResponse {
	return TagResponse{
		ID:          t.ID,
		Priority:    t.Priority,
		Color:       t.Color,
		DisplayName: tagging.DisplayName(t.ID),
	}
}

// TagsToResponses converts a slice of tags, keeping their order.
func TagsToResponses(tags []database.Tag) []TagResponse {
	items := make([]TagResponse, len(tags))
	for i, t := range tags {
		items[i] = TagToResponse(t)
	}
	return items
}

// BatchURL is the API path of a batch.
func BatchURL(toolShortID, uid string) string {
	return fmt.Sprintf("/api/batches/%s/%s", url.PathEscape(toolShortID), url.PathEscape(uid))
}

// BatchToResponse converts a Batch loaded with its tool and tags.
func BatchToResponse(b database.Batch) BatchResponse {
	return BatchResponse{
		ID:      b.ID,
		Tool:    ToolToResponse(b.Tool),
		UID:     b.UID,
		FullUID: b.FullUID(),
		User:    b.User,
		Summary: b.Summary,
		Started: b.Started.UTC(),
		Ended:   b.Ended.UTC(),
		NbEdits: b.NbEdits,
		Tags:    TagsToResponses(b.Tags),
		URL:     BatchURL(b.Tool.ShortID, b.UID),
	}
}

// BatchesToResponses converts a slice of batches.
func BatchesToResponses(batches []database.Batch) []BatchResponse {
	items := make([]BatchResponse, len(batches))
	for i, b := range batches {
		items[i] = BatchToResponse(b)
	}
	return items
}

// BatchToDetail combines a batch, its statistics and its latest edits.
func BatchToDetail(b database.Batch, stats services.BatchStats, edits []database.Edit) BatchDetailResponse {
	return BatchDetailResponse{
		BatchResponse: BatchToResponse(b),
		BatchStats:    stats,
		Edits:         EditsToResponses(edits),
	}
}

// EditToResponse converts an Edit and adds its links.
func EditToResponse(e database.Edit) EditResponse {
	return EditResponse{
		ID:            e.ID,
		OldRevID:      e.OldRevID,
		NewRevID:      e.NewRevID,
		OldLength:     e.OldLength,
		NewLength:     e.NewLength,
		Timestamp:     e.Timestamp.UTC(),
		Title:         e.Title,
		Namespace:     e.Namespace,
		URI:           e.URI,
		Comment:       e.Comment,
		ParsedComment: e.ParsedComment,
		Bot:           e.Bot,
		Minor:         e.Minor,
		Patrolled:     e.Patrolled,
		ChangeType:    e.ChangeType,
		User:          e.User,
		Reverted:      e.Reverted,
		URL:           e.URL(),
		RevertURL:     e.RevertURL(),
	}
}

// EditsToResponses converts a slice of edits.
func EditsToResponses(edits []database.Edit) []EditResponse {
	items := make([]EditResponse, len(edits))
	for i, e := range edits {
		items[i] = EditToResponse(e)
	}
	return items
}
