package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"quality-hub/internal/models"
	"quality-hub/internal/service"
)

// InspectionService is the inspection surface used by staff routes
type InspectionService interface {
	CreateDetailed(ctx context.Context, actor models.Actor, in service.CreateInspectionInput) (*models.Inspection, error)
	CreateSimple(ctx context.Context, actor models.Actor, in service.CreateInspectionInput) (*models.Inspection, error)
	Update(ctx context.Context, actor models.Actor, id string, in service.UpdateInspectionInput) (*models.Inspection, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Inspection, error)
	List(ctx context.Context, actor models.Actor, in service.ListInspectionsInput) (models.Page[models.Inspection], error)
	Pending(ctx context.Context, actor models.Actor, page, limit int) (models.Page[models.Inspection], error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Stats(ctx context.Context, actor models.Actor, from, to *time.Time) (*models.InspectionStats, error)
	Export(ctx context.Context, actor models.Actor, in service.ListInspectionsInput, w io.Writer) error
	History(ctx context.Context, actor models.Actor, id string, page, limit int) (models.Page[models.AuditLog], error)

	Submit(ctx context.Context, actor models.Actor, id string, in service.SubmitInput) (*models.Inspection, error)
	Assign(ctx context.Context, actor models.Actor, id string, in service.AssignInput) (*models.Inspection, error)
	Approve(ctx context.Context, actor models.Actor, id string, in service.ApproveInput) (*models.Inspection, error)
	Reject(ctx context.Context, actor models.Actor, id string, in service.RejectInput) (*models.Inspection, error)
	RequestRevision(ctx context.Context, actor models.Actor, id string, in service.RevisionInput) (*models.Inspection, error)
	FinalApprove(ctx context.Context, actor models.Actor, id string, in service.FinalApproveInput) (*models.Inspection, error)
	Override(ctx context.Context, actor models.Actor, id string, in service.OverrideInput) (*models.Inspection, error)
}

// InspectionHandler handles staff inspection requests
type InspectionHandler struct {
	inspections InspectionService
}

// NewInspectionHandler creates a new inspection handler
func NewInspectionHandler(inspections InspectionService) *InspectionHandler {
	return &InspectionHandler{inspections: inspections}
}

// CreateDetailed creates a checklist-based inspection
// @Summary Create detailed inspection
// @Description Create a draft inspection with checklist items, photos and signature
// @Tags Inspections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateInspectionInput true "Inspection"
// @Success 201 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/detailed [post]
func (h *InspectionHandler) CreateDetailed(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.inspections.CreateDetailed)
}

// CreateSimple creates a rating-based inspection
// @Summary Create simple inspection
// @Description Create a draft inspection with an overall rating and remarks
// @Tags Inspections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateInspectionInput true "Inspection"
// @Success 201 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/simple [post]
func (h *InspectionHandler) CreateSimple(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.inspections.CreateSimple)
}

type createFunc func(ctx context.Context, actor models.Actor, in service.CreateInspectionInput) (*models.Inspection, error)

func (h *InspectionHandler) create(w http.ResponseWriter, r *http.Request, create createFunc) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var req service.CreateInspectionInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	inspection, err := create(r.Context(), actor, req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	setETag(w, inspection.Version)
	respondSuccess(w, http.StatusCreated, "Inspection created", inspection)
}

// Update edits a draft or rejected inspection
// @Summary Update inspection
// @Description Inspector edits an inspection while it is draft or rejected
// @Tags Inspections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.UpdateInspectionInput true "Changed fields"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /staff/quality-inspections/{id} [put]
func (h *InspectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var req service.UpdateInspectionInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.ExpectedVersion, err = ifMatch(r); err != nil {
		respondWithError(w, r, err)
		return
	}

	inspection, err := h.inspections.Update(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	setETag(w, inspection.Version)
	respondSuccess(w, http.StatusOK, "Inspection updated", inspection)
}

// Get returns one inspection
// @Summary Get inspection
// @Tags Inspections
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /staff/quality-inspections/{id} [get]
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	inspection, err := h.inspections.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	setETag(w, inspection.Version)
	respondSuccess(w, http.StatusOK, "Inspection retrieved", inspection)
}

// List returns a filtered page of inspections
// @Summary List inspections
// @Tags Inspections
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param type query string false "detailed or simple"
// @Param project_id query string false "Project ID"
// @Param inspector_id query string false "Inspector user ID"
// @Param reviewer_id query string false "Reviewer user ID"
// @Param has_critical_issues query bool false "Only inspections with critical failures"
// @Param from query string false "Inspection date from"
// @Param to query string false "Inspection date to"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} SuccessResponse{data=models.Page[models.Inspection]}
// @Failure 400 {object} ErrorResponse
// @Router /staff/quality-inspections [get]
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	in, err := parseListParams(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	page, err := h.inspections.List(r.Context(), actor, in)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Inspections retrieved", page)
}

// Pending returns the review queue
// @Summary List inspections awaiting review
// @Tags Inspections
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} SuccessResponse{data=models.Page[models.Inspection]}
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/pending [get]
func (h *InspectionHandler) Pending(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	pageNum, limit := parsePaginationParams(r)
	page, err := h.inspections.Pending(r.Context(), actor, pageNum, limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Pending inspections retrieved", page)
}

// Delete soft-deletes an inspection
// @Summary Delete inspection
// @Tags Inspections
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /staff/quality-inspections/{id} [delete]
func (h *InspectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.inspections.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Inspection deleted", nil)
}

// Stats aggregates inspections of the caller's tenant
// @Summary Inspection statistics
// @Tags Inspections
// @Produce json
// @Security BearerAuth
// @Param from query string false "Inspection date from"
// @Param to query string false "Inspection date to"
// @Success 200 {object} SuccessResponse{data=models.InspectionStats}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/stats [get]
func (h *InspectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	from, err := parseTimeParam(r, "from")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	to, err := parseUpperTimeParam(r, "to")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	stats, err := h.inspections.Stats(r.Context(), actor, from, to)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Inspection statistics retrieved", stats)
}

// Export streams matching inspections as CSV
// @Summary Export inspections
// @Description Accepts the same filters as the list endpoint
// @Tags Inspections
// @Produce text/csv
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param from query string false "Inspection date from"
// @Param to query string false "Inspection date to"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/export [get]
func (h *InspectionHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	in, err := parseListParams(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	out := &csvWriter{w: w, filename: "quality-inspections-" + time.Now().Format("20060102") + ".csv"}
	if err := h.inspections.Export(r.Context(), actor, in, out); err != nil {
		if !out.started {
			respondWithError(w, r, err)
			return
		}
		// headers are gone; the truncated file is all we can do
		slog.Error("Inspection export aborted", "tenant_id", actor.TenantID, "error", err)
	}
}

// History returns the audit trail of one inspection
// @Summary Inspection history
// @Tags Inspections
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} SuccessResponse{data=models.Page[models.AuditLog]}
// @Failure 404 {object} ErrorResponse
// @Router /staff/quality-inspections/{id}/history [get]
func (h *InspectionHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	pageNum, limit := parsePaginationParams(r)
	page, err := h.inspections.History(r.Context(), actor, r.PathValue("id"), pageNum, limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Inspection history retrieved", page)
}

// csvWriter sets download headers on the first write so that errors raised
// before any output can still be reported as JSON
type csvWriter struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (c *csvWriter) Write(p []byte) (int, error) {
	if !c.started {
		c.started = true
		c.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		c.w.Header().Set("Content-Disposition", `attachment; filename="`+c.filename+`"`)
		c.w.WriteHeader(http.StatusOK)
	}
	return c.w.Write(p)
}
