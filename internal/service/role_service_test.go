package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-hub/internal/apperr"
	"quality-hub/internal/models"
	"quality-hub/internal/rbac"
)

func TestResolvePrefersQualityRole(t *testing.T) {
	env := newTestEnv(t)
	both := env.addStaff(rbac.RoleBusinessAdmin, rbac.RoleTeamLeader)
	mainOnly := env.addStaff(rbac.RoleBusinessAdmin, "")

	role, err := env.roles.Resolve(context.Background(), env.tenantID, both.UserID)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleTeamLeader, role.Name())
	assert.False(t, role.CanOverride())

	role, err = env.roles.Resolve(context.Background(), env.tenantID, mainOnly.UserID)
	require.NoError(t, err)
	assert.True(t, role.CanOverride())

	_, err = env.roles.Resolve(context.Background(), env.tenantID, uuid.NewString())
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = env.roles.Resolve(context.Background(), uuid.NewString(), both.UserID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "staff is tenant scoped")
}

func TestAssignInvalidRoleIsAudited(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addStaff(rbac.RoleBusinessAdmin, "")
	target := env.addStaff("staff", "")

	_, err := env.roles.AssignQualityRole(context.Background(), admin, target.UserID, "chief_inspector")
	require.True(t, apperr.Is(err, apperr.CodeValidation))

	audit := env.auditRepo.last(t)
	assert.Equal(t, models.AuditRoleAssign, audit.Action)
	assert.False(t, audit.Success)
	assert.Equal(t, target.UserID, audit.ResourceID)
	assert.Empty(t, env.outboxRepo.events)
}

func TestAssignAndRemoveQualityRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addStaff(rbac.RoleBusinessAdmin, "")
	target := env.addStaff("staff", "")

	view, err := env.roles.AssignQualityRole(context.Background(), admin, target.UserID, rbac.RoleSiteSupervisor)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleSiteSupervisor, view.EffectiveRole)
	assert.True(t, view.Permissions.CanExport)

	audit := env.auditRepo.last(t)
	assert.True(t, audit.Success)
	assert.Equal(t, models.SeverityMedium, audit.Severity)
	var newValues map[string]string
	require.NoError(t, json.Unmarshal(audit.NewValues, &newValues))
	assert.Equal(t, rbac.RoleSiteSupervisor, newValues["quality_role"])

	require.Len(t, env.outboxRepo.events, 1)
	event := env.outboxRepo.events[0]
	assert.Equal(t, models.EventRoleAssigned, event.EventType)
	assert.Equal(t, []string{target.UserID}, event.RecipientUserIDs)
	assert.Len(t, env.notifier.delivered, 1)

	require.NoError(t, env.roles.RemoveQualityRole(context.Background(), admin, target.UserID))
	role, err := env.roles.Resolve(context.Background(), env.tenantID, target.UserID)
	require.NoError(t, err)
	assert.Equal(t, "staff", role.Name())

	err = env.roles.RemoveQualityRole(context.Background(), admin, target.UserID)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
}

func TestRoleNotificationFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.outboxRepo.err = errStoreDown
	admin := env.addStaff(rbac.RoleBusinessAdmin, "")
	target := env.addStaff("staff", "")

	_, err := env.roles.AssignQualityRole(context.Background(), admin, target.UserID, rbac.RoleTeamLeader)
	require.NoError(t, err)
	assert.Empty(t, env.notifier.delivered)
}
