package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
	"quality-hub/internal/rbac"
)

func TestExportWritesCSV(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	manager := env.addStaff("staff", rbac.RoleProjectManager)

	i := env.seed(t, inspector, models.StatusComplete)
	i.Title = "=HYPERLINK(\"x\")"
	env.inspectionRepo.put(i)
	env.seed(t, inspector, models.StatusPending)

	var buf bytes.Buffer
	require.NoError(t, env.inspections.Export(context.Background(), manager, ListInspectionsInput{}, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])

	var titles []string
	for _, r := range records[1:] {
		titles = append(titles, r[3])
	}
	assert.Contains(t, titles, "'=HYPERLINK(\"x\")")

	audit := env.auditRepo.last(t)
	assert.Equal(t, models.AuditInspectionExport, audit.Action)
	assert.JSONEq(t, `{"rows":2}`, string(audit.NewValues))
}

func TestExportRequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)

	var buf bytes.Buffer
	err := env.inspections.Export(context.Background(), inspector, ListInspectionsInput{}, &buf)
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))
	assert.Zero(t, buf.Len())
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	supervisor := env.addStaff("staff", rbac.RoleSiteSupervisor)

	env.seed(t, inspector, models.StatusDraft)
	env.seed(t, inspector, models.StatusComplete)

	stats, err := env.inspections.Stats(context.Background(), supervisor, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.StatusComplete])

	_, err = env.inspections.Stats(context.Background(), inspector, nil, nil)
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))
}

func TestHistoryListsAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	inspector := env.addStaff("staff", rbac.RoleQualityStaff)
	reviewer := env.addStaff("staff", rbac.RoleTeamLeader)
	i := env.seed(t, inspector, models.StatusPending)

	_, err := env.inspections.Approve(context.Background(), reviewer, i.ID, ApproveInput{})
	require.NoError(t, err)

	history, err := env.inspections.History(context.Background(), inspector, i.ID, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 1, history.Total)
	assert.Equal(t, models.AuditInspectionApprove, history.Items[0].Action)
}
