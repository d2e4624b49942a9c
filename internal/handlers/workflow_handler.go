package handlers

import (
	"context"
	"net/http"

	"quality-hub/internal/models"
	"quality-hub/internal/service"
)

// handleTransition decodes the body and precondition, runs one workflow
// step and responds with the updated inspection
func handleTransition[T any](
	w http.ResponseWriter,
	r *http.Request,
	message string,
	setVersion func(in *T, v *int),
	run func(ctx context.Context, actor models.Actor, id string, in T) (*models.Inspection, error),
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

	inspection, err := run(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	setETag(w, inspection.Version)
	respondSuccess(w, http.StatusOK, message, inspection)
}

// Submit sends a draft for review
// @Summary Submit inspection
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.SubmitInput false "Submission notes"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /staff/quality-inspections/{id}/submit [put]
func (h *InspectionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "Inspection submitted for review",
		func(in *service.SubmitInput, v *int) { in.ExpectedVersion = v },
		h.inspections.Submit)
}

// Assign claims a pending inspection for review
// @Summary Assign reviewer
// @Description An empty reviewer_id assigns the caller
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.AssignInput false "Reviewer"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/review/{id}/assign [put]
func (h *InspectionHandler) Assign(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "Reviewer assigned",
		func(in *service.AssignInput, v *int) { in.ExpectedVersion = v },
		h.inspections.Assign)
}

// Approve passes review
// @Summary Approve inspection
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.ApproveInput false "Comments"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/review/{id}/approve [put]
func (h *InspectionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "Inspection approved",
		func(in *service.ApproveInput, v *int) { in.ExpectedVersion = v },
		h.inspections.Approve)
}

// Reject returns an inspection to its inspector
// @Summary Reject inspection
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.RejectInput true "Reason and feedback"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/review/{id}/reject [put]
func (h *InspectionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "Inspection rejected",
		func(in *service.RejectInput, v *int) { in.ExpectedVersion = v },
		h.inspections.Reject)
}

// RequestRevision asks the inspector for changes
// @Summary Request revision
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.RevisionInput true "Feedback and required changes"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/review/{id}/request-revision [put]
func (h *InspectionHandler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "Revision requested",
		func(in *service.RevisionInput, v *int) { in.ExpectedVersion = v },
		h.inspections.RequestRevision)
}

// FinalApprove completes an approved inspection
// @Summary Final approval
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.FinalApproveInput false "Comments and client notification flag"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/final-approval/{id}/approve [put]
func (h *InspectionHandler) FinalApprove(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "Inspection completed",
		func(in *service.FinalApproveInput, v *int) { in.ExpectedVersion = v },
		h.inspections.FinalApprove)
}

// Override forces a final decision
// @Summary Override review decision
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Inspection ID"
// @Param If-Match header string false "Expected version"
// @Param body body service.OverrideInput true "Decision, reason and justification"
// @Success 200 {object} SuccessResponse{data=models.Inspection}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /staff/quality-inspections/final-approval/{id}/override [put]
func (h *InspectionHandler) Override(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, "Decision overridden",
		func(in *service.OverrideInput, v *int) { in.ExpectedVersion = v },
		h.inspections.Override)
}
