package handlers

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/editgroups/editgroups/internal/api"
	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/middleware"
	"github.com/editgroups/editgroups/internal/services"
)

// APIHandler serves the read-only JSON API over tools, tags, batches and edits
type APIHandler struct {
	batches *services.BatchService
	tools   *services.ToolService
	logger  logrus.FieldLogger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(batches *services.BatchService, tools *services.ToolService, logger logrus.FieldLogger) *APIHandler {
	return &APIHandler{
		batches: batches,
		tools:   tools,
		logger:  logger,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tools", h.handleTools)
	mux.HandleFunc("GET /api/tags", h.handleTags)

	mux.HandleFunc("GET /api/batches", h.handleBatches)
	mux.HandleFunc("GET /api/batches/{tool}/{uid}", h.handleBatch)
	mux.HandleFunc("GET /api/batches/{tool}/{uid}/edits", h.handleBatchEdits)
}

// handleTools handles GET /api/tools
func (h *APIHandler) handleTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.tools.ListTools()
	if err != nil {
		api.RespondInternalError(w, h.requestLogger(r), err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.ToolsToResponses(tools))
}

// handleTags handles GET /api/tags
func (h *APIHandler) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.batches.ListTags()
	if err != nil {
		api.RespondInternalError(w, h.requestLogger(r), err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.TagsToResponses(tags))
}

// handleBatches handles GET /api/batches?tool=&user=&tag=&page=&per_page=
func (h *APIHandler) handleBatches(w http.ResponseWriter, r *http.Request) {
	query := api.ParseBatchListQuery(r)
	if errs := api.Validate(query); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	params := api.ParsePagination(r)
	batches, total, err := h.batches.ListBatches(query.Filter(), params.Offset(), params.Limit())
	if err != nil {
		api.RespondInternalError(w, h.requestLogger(r), err)
		return
	}
	api.RespondPage(w, api.BatchesToResponses(batches), params, total)
}

// handleBatch handles GET /api/batches/{tool}/{uid}
func (h *APIHandler) handleBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.lookupBatch(w, r)
	if !ok {
		return
	}

	stats, err := h.batches.Stats(batch)
	if err != nil {
		api.RespondInternalError(w, h.requestLogger(r), err)
		return
	}
	edits, err := h.batches.RecentEdits(batch.ID, services.RecentEditsLimit)
	if err != nil {
		api.RespondInternalError(w, h.requestLogger(r), err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.BatchToDetail(*batch, *stats, edits))
}

// handleBatchEdits handles GET /api/batches/{tool}/{uid}/edits
func (h *APIHandler) handleBatchEdits(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.lookupBatch(w, r)
	if !ok {
		return
	}

	params := api.ParsePagination(r)
	edits, total, err := h.batches.ListEdits(batch.ID, params.Offset(), params.Limit())
	if err != nil {
		api.RespondInternalError(w, h.requestLogger(r), err)
		return
	}
	api.RespondPage(w, api.EditsToResponses(edits), params, total)
}

// lookupBatch resolves the batch named by the path, writing the error
// response itself when there is none.
func (h *APIHandler) lookupBatch(w http.ResponseWriter, r *http.Request) (*database.Batch, bool) {
	path := api.BatchPath{Tool: r.PathValue("tool"), UID: r.PathValue("uid")}
	if errs := api.Validate(path); errs != nil {
		api.RespondValidationError(w, errs)
		return nil, false
	}

	batch, err := h.batches.GetBatch(path.Tool, path.UID)
	if errors.Is(err, services.ErrBatchNotFound) {
		api.RespondNotFound(w, "Batch not found")
		return nil, false
	}
	if err != nil {
		api.RespondInternalError(w, h.requestLogger(r), err)
		return nil, false
	}
	return batch, true
}

func (h *APIHandler) requestLogger(r *http.Request) logrus.FieldLogger {
	return h.logger.WithField("request_id", middleware.GetRequestID(r.Context()))
}
