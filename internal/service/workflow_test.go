package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
	"quality-hub/internal/rbac"
)

func intPtr(v int) *int { return &v }

func TestCreateSimpleLowRatingIsCritical(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)

	tests := []struct {
		rating   int
		critical bool
	}{
		{1, true},
		{2, true},
		{3, false},
		{5, false},
	}
	for _, tt := range tests {
		i, err := env.inspections.CreateSimple(context.Background(), inspector, CreateInspectionInput{
			ProjectID:     uuid.NewString(),
			Title:         "Bathroom tiling",
			OverallRating: intPtr(tt.rating),
			Remarks:       "cracked tile",
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, i.Status)
		assert.Equal(t, tt.critical, i.HasCriticalIssues, "rating %d", tt.rating)
		assert.Nil(t, i.CompletedDate)
	}
}

func TestCreateDetailedCountsChecklist(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleSiteSupervisor)

	i, err := env.inspections.CreateDetailed(context.Background(), inspector, CreateInspectionInput{
		ProjectID: uuid.NewString(),
		Title:     "Roof membrane",
		ChecklistItems: []models.ChecklistItem{
			{Label: "Seams sealed", Status: models.ItemPass},
			{Label: "Drainage", Status: models.ItemFail},
			{Label: "Flashing", Status: models.ItemNotApplicable},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, i.TotalItems)
	assert.Equal(t, 1, i.PassedItems)
	assert.Equal(t, 1, i.FailedItems)
	assert.False(t, i.HasCriticalIssues, "a non-critical failure must not flag the inspection")
	for _, item := range i.ChecklistItems {
		assert.NotEmpty(t, item.ID)
	}

	i, err = env.inspections.CreateDetailed(context.Background(), inspector, CreateInspectionInput{
		ProjectID:      uuid.NewString(),
		Title:          "Fire exits",
		ChecklistItems: []models.ChecklistItem{{Label: "Exit clear", Status: models.ItemFail, Critical: true}},
	})
	require.NoError(t, err)
	assert.True(t, i.HasCriticalIssues)
}

func TestCreateGuards(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	manager := env.addStaff("staff", rbac.RoleProjectManager)

	_, err := env.inspections.CreateSimple(context.Background(), manager, CreateInspectionInput{
		ProjectID: uuid.NewString(), Title: "Facade", OverallRating: intPtr(4),
	})
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied), "got %v", err)

	audit := env.auditRepo.last(t)
	assert.Equal(t, models.AuditInspectionCreate, audit.Action)
	assert.False(t, audit.Success)
	assert.Equal(t, models.SeverityMedium, audit.Severity)

	_, err = env.inspections.CreateSimple(context.Background(), inspector, CreateInspectionInput{
		ProjectID: uuid.NewString(), Title: "Facade", OverallRating: intPtr(6),
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = env.inspections.CreateSimple(context.Background(), inspector, CreateInspectionInput{
		ProjectID: "not-a-project", Title: "Facade", OverallRating: intPtr(3),
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	env.setConfig(func(c *models.TenantInspectionConfig) { c.UseDetailedInspections = false })
	_, err = env.inspections.CreateDetailed(context.Background(), inspector, CreateInspectionInput{
		ProjectID: uuid.NewString(), Title: "Facade",
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestCreateUnknownStaffIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	stranger := models.Actor{UserID: uuid.NewString(), TenantID: env.tenantID, Role: models.AuthRoleStaff}

	_, err := env.inspections.CreateSimple(context.Background(), stranger, CreateInspectionInput{
		ProjectID: uuid.NewString(), Title: "Facade", OverallRating: intPtr(4),
	})
	require.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Equal(t, models.SeverityHigh, env.auditRepo.last(t).Severity)
}

func TestSubmitRequiresPhotosForDetailed(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)

	i, err := env.inspections.CreateDetailed(context.Background(), inspector, CreateInspectionInput{
		ProjectID:      uuid.NewString(),
		Title:          "Scaffold",
		ChecklistItems: []models.ChecklistItem{{Label: "Guard rails", Status: models.ItemPass}},
	})
	require.NoError(t, err)

	_, err = env.inspections.Submit(context.Background(), inspector, i.ID, SubmitInput{})
	require.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
	assert.Equal(t, models.StatusDraft, env.inspectionRepo.stored(t, i.ID).Status)
	assert.Empty(t, env.notifier.delivered)

	photos := []models.Photo{{URL: "https://cdn.example.com/p1.jpg"}}
	_, err = env.inspections.Update(context.Background(), inspector, i.ID, UpdateInspectionInput{Photos: &photos})
	require.NoError(t, err)

	submitted, err := env.inspections.Submit(context.Background(), inspector, i.ID, SubmitInput{Notes: "ready"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, submitted.Status)
	assert.NotNil(t, submitted.SubmittedDate)
	require.NotNil(t, submitted.Metadata.Submission)
	assert.Equal(t, "ready", submitted.Metadata.Submission.Notes)

	event := env.inspectionRepo.lastEvent(t)
	assert.Equal(t, models.EventInspectionSubmitted, event.EventType)
	assert.ElementsMatch(t, []string{rbac.RoleTeamLeader, rbac.RoleProjectManager, rbac.RoleOperationsManager}, event.RecipientRoles)
}

func TestSubmitSimpleSkipsCompletenessChecks(t *testing.T) {
	env := newTestEnv(t)
	env.setConfig(func(c *models.TenantInspectionConfig) { c.RequireSignature = true })
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	i := env.seed(t, inspector, models.StatusDraft)

	submitted, err := env.inspections.Submit(context.Background(), inspector, i.ID, SubmitInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, submitted.Status)
}

func TestSubmitGuards(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	other := env.addStaff("staff", rbac.RoleQualityStaff)

	draft := env.seed(t, inspector, models.StatusDraft)
	_, err := env.inspections.Submit(context.Background(), other, draft.ID, SubmitInput{})
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))

	pending := env.seed(t, inspector, models.StatusPending)
	_, err = env.inspections.Submit(context.Background(), inspector, pending.ID, SubmitInput{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	_, err = env.inspections.Submit(context.Background(), inspector, uuid.NewString(), SubmitInput{})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Equal(t, models.SeverityHigh, env.auditRepo.last(t).Severity)
}

func TestReviewerApprovesPending(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	i := env.seed(t, inspector, models.StatusPending)

	approved, err := env.inspections.Approve(context.Background(), reviewer, i.ID, ApproveInput{Comments: "looks good"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.NotNil(t, approved.ReviewedDate)
	assert.Equal(t, reviewer.UserID, derefString(approved.ReviewerID))
	assert.Equal(t, i.Version+1, approved.Version)

	event := env.inspectionRepo.lastEvent(t)
	assert.Equal(t, models.EventInspectionApproved, event.EventType)
	assert.Equal(t, []string{rbac.RoleOperationsManager}, event.RecipientRoles)
	assert.Equal(t, []string{inspector.UserID}, event.RecipientUserIDs)
	assert.Contains(t, env.notifier.delivered, event)

	audit := env.auditRepo.last(t)
	assert.Equal(t, models.AuditInspectionApprove, audit.Action)
	assert.True(t, audit.Success)
	assert.Equal(t, models.SeverityLow, audit.Severity)
}

func TestSelfReviewIsDenied(t *testing.T) {
	env := newTestEnv(t)
	leader := env.addStaff("staff", rbac.RoleTeamLeader)

	actions := map[string]func(id string) error{
		"approve": func(id string) error {
			_, err := env.inspections.Approve(context.Background(), leader, id, ApproveInput{})
			return err
		},
		"reject": func(id string) error {
			_, err := env.inspections.Reject(context.Background(), leader, id, RejectInput{Reason: "r", Feedback: "f"})
			return err
		},
		"request revision": func(id string) error {
			_, err := env.inspections.RequestRevision(context.Background(), leader, id, RevisionInput{Feedback: "f", RequiredChanges: []string{"c"}})
			return err
		},
	}

	for name, act := range actions {
		t.Run(name, func(t *testing.T) {
			i := env.seed(t, leader, models.StatusPending)
			err := act(i.ID)
			require.True(t, apperr.Is(err, apperr.CodePermissionDenied), "got %v", err)
			assert.Equal(t, models.StatusPending, env.inspectionRepo.stored(t, i.ID).Status)
		})
	}
}

func TestSelfReviewAllowedByConfig(t *testing.T) {
	env := newTestEnv(t)
	env.setConfig(func(c *models.TenantInspectionConfig) { c.AllowSelfReview = true })
	leader := env.addStaff("staff", rbac.RoleTeamLeader)
	i := env.seed(t, leader, models.StatusUnderReview)

	approved, err := env.inspections.Approve(context.Background(), leader, i.ID, ApproveInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
}

func TestReviewRequiresCanReview(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	colleague := env.addStaff("staff", rbac.RoleQualityStaff)
	i := env.seed(t, inspector, models.StatusPending)

	_, err := env.inspections.Approve(context.Background(), colleague, i.ID, ApproveInput{})
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))
}

func TestQualityRoleShadowsMainRole(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	// main role would be allowed to review, the quality role is not
	demoted := env.addStaff(rbac.RoleProjectManager, rbac.RoleQualityStaff)
	i := env.seed(t, inspector, models.StatusPending)

	_, err := env.inspections.Approve(context.Background(), demoted, i.ID, ApproveInput{})
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))

	promoted := env.addStaff("staff", rbac.RoleProjectManager)
	_, err = env.inspections.Approve(context.Background(), promoted, i.ID, ApproveInput{})
	assert.NoError(t, err)
}

func TestRejectReturnsToDraft(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	i := env.seed(t, inspector, models.StatusUnderReview)

	_, err := env.inspections.Reject(context.Background(), reviewer, i.ID, RejectInput{Reason: "incomplete"})
	require.True(t, apperr.Is(err, apperr.CodeValidation))

	rejected, err := env.inspections.Reject(context.Background(), reviewer, i.ID, RejectInput{
		Reason:          "incomplete",
		Feedback:        "photos missing for level 3",
		RequiredChanges: []string{"add photos", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, rejected.Status)
	require.NotNil(t, rejected.Metadata.Rejection)
	assert.Equal(t, []string{"add photos"}, rejected.Metadata.Rejection.RequiredChanges)

	event := env.inspectionRepo.lastEvent(t)
	assert.Equal(t, models.EventInspectionRejected, event.EventType)
	assert.Equal(t, []string{inspector.UserID}, event.RecipientUserIDs)
}

func TestRequestRevisionIncrementsCount(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	i := env.seed(t, inspector, models.StatusPending)

	_, err := env.inspections.RequestRevision(context.Background(), reviewer, i.ID, RevisionInput{Feedback: "redo"})
	require.True(t, apperr.Is(err, apperr.CodeValidation))

	revised, err := env.inspections.RequestRevision(context.Background(), reviewer, i.ID, RevisionInput{
		Feedback:        "redo",
		RequiredChanges: []string{"measure joints"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, revised.Status)
	assert.Equal(t, 1, revised.RevisionCount)
	assert.Equal(t, 1, revised.Metadata.Revision.Count)

	_, err = env.inspections.Submit(context.Background(), inspector, i.ID, SubmitInput{})
	require.NoError(t, err)
	revised, err = env.inspections.RequestRevision(context.Background(), reviewer, i.ID, RevisionInput{
		Feedback:        "still off",
		RequiredChanges: []string{"measure joints again"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, revised.RevisionCount)
}

func TestAssignOnlyFromPending(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	manager := env.addStaff("staff", rbac.RoleProjectManager)

	i := env.seed(t, inspector, models.StatusPending)
	assigned, err := env.inspections.Assign(context.Background(), manager, i.ID, AssignInput{ReviewerID: reviewer.UserID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, assigned.Status)
	assert.Equal(t, reviewer.UserID, derefString(assigned.ReviewerID))
	assert.Equal(t, manager.UserID, assigned.Metadata.Assignment.AssignedBy)

	_, err = env.inspections.Assign(context.Background(), manager, i.ID, AssignInput{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	other := env.seed(t, inspector, models.StatusPending)
	_, err = env.inspections.Assign(context.Background(), manager, other.ID, AssignInput{ReviewerID: inspector.UserID})
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "inspector cannot review, got %v", err)

	_, err = env.inspections.Assign(context.Background(), manager, other.ID, AssignInput{ReviewerID: uuid.NewString()})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestFinalApprovalTwiceFails(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	approver := env.addStaff("staff", rbac.RoleOperationsManager)
	i := env.seed(t, inspector, models.StatusApproved)

	done, err := env.inspections.FinalApprove(context.Background(), approver, i.ID, FinalApproveInput{ClientNotificationRequired: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, done.Status)
	assert.NotNil(t, done.CompletedDate)
	assert.Equal(t, models.FinalApprovalApproved, done.Metadata.FinalApproval.Action)
	assert.True(t, done.Metadata.FinalApproval.ClientNotificationRequired)

	_, err = env.inspections.FinalApprove(context.Background(), approver, i.ID, FinalApproveInput{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState), "got %v", err)
}

func TestFinalApprovalGuards(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	approver := env.addStaff("staff", rbac.RoleOperationsManager)
	manager := env.addStaff("staff", rbac.RoleProjectManager)

	approved := env.seed(t, inspector, models.StatusApproved)
	_, err := env.inspections.FinalApprove(context.Background(), manager, approved.ID, FinalApproveInput{})
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))

	pending := env.seed(t, inspector, models.StatusPending)
	_, err = env.inspections.FinalApprove(context.Background(), approver, pending.ID, FinalApproveInput{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
	assert.Nil(t, env.inspectionRepo.stored(t, pending.ID).CompletedDate)
}

func TestOverrideApprove(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	approver := env.addStaff(rbac.RoleOperationsManager, "")

	i := env.seed(t, inspector, models.StatusUnderReview)
	i.ReviewerID = stringPtr(reviewer.UserID)
	env.inspectionRepo.put(i)

	_, err := env.inspections.Override(context.Background(), approver, i.ID, OverrideInput{Decision: models.OverrideApprove, Reason: "deadline"})
	require.True(t, apperr.Is(err, apperr.CodeValidation))

	done, err := env.inspections.Override(context.Background(), approver, i.ID, OverrideInput{
		Decision:      models.OverrideApprove,
		Reason:        "client deadline",
		Justification: "structural engineer signed off separately",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, done.Status)
	assert.NotNil(t, done.CompletedDate)
	assert.Equal(t, models.FinalApprovalOverrideApproved, done.Metadata.FinalApproval.Action)
	assert.Equal(t, models.StatusUnderReview, done.Metadata.Override.OriginalStatus)
	assert.Equal(t, reviewer.UserID, derefString(done.Metadata.Override.OriginalReviewerID))
	assert.Equal(t, "structural engineer signed off separately", done.Metadata.Override.Justification)

	stored := env.inspectionRepo.stored(t, i.ID)
	assert.Equal(t, "vault:v1:structural engineer signed off separately", stored.Metadata.Override.Justification)

	audit := env.auditRepo.last(t)
	assert.Equal(t, models.AuditInspectionOverride, audit.Action)
	assert.Equal(t, models.SeverityHigh, audit.Severity)
}

func TestOverrideReject(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	approver := env.addStaff("staff", rbac.RoleOperationsManager)
	i := env.seed(t, inspector, models.StatusApproved)

	rejected, err := env.inspections.Override(context.Background(), approver, i.ID, OverrideInput{
		Decision:      models.OverrideReject,
		Reason:        "failed site audit",
		Justification: "water ingress found after approval",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Nil(t, rejected.CompletedDate)
	assert.Equal(t, models.FinalApprovalOverrideRejected, rejected.Metadata.FinalApproval.Action)

	_, err = env.inspections.Override(context.Background(), approver, i.ID, OverrideInput{
		Decision: models.OverrideReject, Reason: "again", Justification: "again",
	})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	edited, err := env.inspections.Update(context.Background(), inspector, i.ID, UpdateInspectionInput{Remarks: stringPtr("fixed ingress")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, edited.Status)
}

func TestOverrideGuards(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	approver := env.addStaff("staff", rbac.RoleOperationsManager)
	// break-glass role that is not the configured final approver
	gm := env.addStaff(rbac.RoleGeneralManager, "")
	// final approver whose role is outside the fixed override list
	env.setConfig(func(c *models.TenantInspectionConfig) { c.FinalApprover = rbac.RoleProjectManager })
	manager := env.addStaff("staff", rbac.RoleProjectManager)

	in := OverrideInput{Decision: models.OverrideApprove, Reason: "r", Justification: "j"}
	pending := env.seed(t, inspector, models.StatusPending)

	_, err := env.inspections.Override(context.Background(), gm, pending.ID, in)
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))
	_, err = env.inspections.Override(context.Background(), manager, pending.ID, in)
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))
	_, err = env.inspections.Override(context.Background(), approver, pending.ID, in)
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied), "operations manager is no longer final approver")

	env.setConfig(func(*models.TenantInspectionConfig) {})
	draft := env.seed(t, inspector, models.StatusDraft)
	_, err = env.inspections.Override(context.Background(), approver, draft.ID, in)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	complete := env.seed(t, inspector, models.StatusComplete)
	_, err = env.inspections.Override(context.Background(), approver, complete.ID, in)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	_, err = env.inspections.Override(context.Background(), approver, pending.ID, OverrideInput{Decision: "maybe", Reason: "r", Justification: "j"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestStateMachineClosure(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	approver := env.addStaff("staff", rbac.RoleOperationsManager)
	ctx := context.Background()

	draft := env.seed(t, inspector, models.StatusDraft)
	_, err := env.inspections.Approve(ctx, reviewer, draft.ID, ApproveInput{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
	_, err = env.inspections.FinalApprove(ctx, approver, draft.ID, FinalApproveInput{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	approved := env.seed(t, inspector, models.StatusApproved)
	_, err = env.inspections.Reject(ctx, reviewer, approved.ID, RejectInput{Reason: "r", Feedback: "f"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
	_, err = env.inspections.Submit(ctx, inspector, approved.ID, SubmitInput{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	complete := env.seed(t, inspector, models.StatusComplete)
	_, err = env.inspections.Update(ctx, inspector, complete.ID, UpdateInspectionInput{Remarks: stringPtr("late edit")})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
}

func TestCompletedDateOnlyWhenComplete(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	approver := env.addStaff("staff", rbac.RoleOperationsManager)
	ctx := context.Background()

	i, err := env.inspections.CreateSimple(ctx, inspector, CreateInspectionInput{
		ProjectID: uuid.NewString(), Title: "Driveway", OverallRating: intPtr(4),
	})
	require.NoError(t, err)

	steps := []func() (*models.Inspection, error){
		func() (*models.Inspection, error) { return env.inspections.Submit(ctx, inspector, i.ID, SubmitInput{}) },
		func() (*models.Inspection, error) { return env.inspections.Assign(ctx, reviewer, i.ID, AssignInput{}) },
		func() (*models.Inspection, error) {
			return env.inspections.Approve(ctx, reviewer, i.ID, ApproveInput{})
		},
		func() (*models.Inspection, error) {
			return env.inspections.FinalApprove(ctx, approver, i.ID, FinalApproveInput{})
		},
	}
	for _, step := range steps {
		got, err := step()
		require.NoError(t, err)
		assert.Equal(t, got.Status == models.StatusComplete, got.CompletedDate != nil, "status %s", got.Status)
	}
	assert.Equal(t, models.StatusComplete, env.inspectionRepo.stored(t, i.ID).Status)
}

func TestStaleVersionIsConflict(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	i := env.seed(t, inspector, models.StatusPending)

	stale := i.Version - 1
	_, err := env.inspections.Approve(context.Background(), reviewer, i.ID, ApproveInput{ExpectedVersion: &stale})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	current := i.Version
	_, err = env.inspections.Approve(context.Background(), reviewer, i.ID, ApproveInput{ExpectedVersion: &current})
	assert.NoError(t, err)
}

func TestConcurrentWriteIsConflict(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	i := env.seed(t, inspector, models.StatusPending)

	env.inspectionRepo.beforeUpdate = func() {
		// another request commits between load and write
		bumped := env.inspectionRepo.stored(t, i.ID)
		bumped.Version++
		env.inspectionRepo.put(bumped)
	}

	expected := i.Version
	_, err := env.inspections.Approve(context.Background(), reviewer, i.ID, ApproveInput{ExpectedVersion: &expected})
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "got %v", err)
	assert.Equal(t, models.StatusPending, env.inspectionRepo.stored(t, i.ID).Status)
}

func TestStoreFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	i := env.seed(t, inspector, models.StatusPending)
	env.inspectionRepo.updateErr = errStoreDown

	_, err := env.inspections.Approve(context.Background(), reviewer, i.ID, ApproveInput{})
	require.True(t, apperr.Is(err, apperr.CodeInternal))
	assert.Equal(t, "An unexpected error occurred", apperr.PublicMessage(err))
	assert.Empty(t, env.notifier.delivered, "nothing is delivered for an uncommitted transition")

	audit := env.auditRepo.last(t)
	assert.False(t, audit.Success)
	assert.Equal(t, models.SeverityHigh, audit.Severity)
}
