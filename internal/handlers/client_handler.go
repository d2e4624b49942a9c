package handlers

import (
	"context"
	"net/http"

	"quality-hub/internal/models"
	"quality-hub/internal/service"
)

// ClientReviewService is the surface external clients use
type ClientReviewService interface {
	List(ctx context.Context, actor models.Actor, page, limit int) (models.Page[service.ClientInspectionView], error)
	Get(ctx context.Context, actor models.Actor, id string) (*service.ClientInspectionView, error)
	Review(ctx context.Context, actor models.Actor, id string, in service.ClientReviewInput) (*service.ClientInspectionView, error)
	Approve(ctx context.Context, actor models.Actor, id string, in service.ClientApproveInput) (*service.ClientInspectionView, error)
	Reject(ctx context.Context, actor models.Actor, id string, in service.ClientRejectInput) (*service.ClientInspectionView, error)
}

// ClientHandler handles requests from external clients
type ClientHandler struct {
	reviews ClientReviewService
}

// NewClientHandler creates a new client handler
func NewClientHandler(reviews ClientReviewService) *ClientHandler {
	return &ClientHandler{reviews: reviews}
}

// List returns the caller's approved and completed inspections
// @Summary List client inspections
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} SuccessResponse{data=models.Page[service.ClientInspectionView]}
// @Failure 401 {object} ErrorResponse
// @Router /client/quality-inspections [get]
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	pageNum, limit := parsePaginationParams(r)
	page, err := h.reviews.List(r.Context(), actor, pageNum, limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Inspections retrieved", page)
}

// Get returns one inspection of the caller
// @Summary Get client inspection
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Security ApiKeyAuth
// @Param id path string true "Inspection ID"
// @Success 200 {object} SuccessResponse{data=service.ClientInspectionView}
// @Failure 404 {object} ErrorResponse
// @Router /client/quality-inspections/{id} [get]
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	view, err := h.reviews.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	setETag(w, view.Version)
	respondSuccess(w, http.StatusOK, "Inspection retrieved", view)
}

// Review records a rating and comments
// @Summary Review inspection
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security ApiKeyAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.ClientReviewInput true "Rating and comments"
// @Success 200 {object} SuccessResponse{data=service.ClientInspectionView}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /client/quality-inspections/{id}/review [put]
func (h *ClientHandler) Review(w http.ResponseWriter, r *http.Request) {
	handleClientAction(w, r, "Review recorded",
		func(in *service.ClientReviewInput, v *int) { in.ExpectedVersion = v },
		h.reviews.Review)
}

// Approve accepts the delivered work
// @Summary Approve inspection as client
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security ApiKeyAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.ClientApproveInput false "Comments"
// @Success 200 {object} SuccessResponse{data=service.ClientInspectionView}
// @Failure 404 {object} ErrorResponse
// @Router /client/quality-inspections/{id}/approve [put]
func (h *ClientHandler) Approve(w http.ResponseWriter, r *http.Request) {
	handleClientAction(w, r, "Inspection approved",
		func(in *service.ClientApproveInput, v *int) { in.ExpectedVersion = v },
		h.reviews.Approve)
}

// Reject requests rework
// @Summary Reject inspection as client
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security ApiKeyAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.ClientRejectInput true "Reason and requested changes"
// @Success 200 {object} SuccessResponse{data=service.ClientInspectionView}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /client/quality-inspections/{id}/reject [put]
func (h *ClientHandler) Reject(w http.ResponseWriter, r *http.Request) {
	handleClientAction(w, r, "Rework requested",
		func(in *service.ClientRejectInput, v *int) { in.ExpectedVersion = v },
		h.reviews.Reject)
}

func handleClientAction[T any](
	w http.ResponseWriter,
	r *http.Request,
	message string,
	setVersion func(in *T, v *int),
	run func(ctx context.Context, actor models.Actor, id string, in T) (*service.ClientInspectionView, error),
) {
	actor, err := actorFrom(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var in T
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, err)
		return
	}
	version, err := ifMatch(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	setVersion(&in, version)

	view, err := run(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	setETag(w, view.Version)
	respondSuccess(w, http.StatusOK, message, view)
}
