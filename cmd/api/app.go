package main

import (
	"database/sql"
	"net/http"

	"quality-hub/internal/auth"
	"quality-hub/internal/config"
	"quality-hub/internal/handlers"
	"quality-hub/internal/middleware"
	"quality-hub/internal/models"
	"quality-hub/internal/notify"
	"quality-hub/internal/repository"
	"quality-hub/internal/service"
)

// app holds the wired repositories, services and handlers of the API
type app struct {
	inspectionRepo *repository.InspectionRepository
	outboxRepo     *repository.OutboxRepository
	tenantRepo     *repository.TenantRepository

	dispatcher *notify.Dispatcher
	guard      *middleware.AuthGuard

	inspectionHandler   *handlers.InspectionHandler
	clientHandler       *handlers.ClientHandler
	configHandler       *handlers.ConfigHandler
	roleHandler         *handlers.RoleHandler
	auditHandler        *handlers.AuditHandler
	notificationHandler *handlers.NotificationHandler
}

// newApp wires the application over db. In-app notifications are always
// delivered; extra channels are added after them.
func newApp(db *sql.DB, cfg *config.Config, sealer service.Sealer, channels ...notify.Channel) *app {
	// Initialize repositories
	inspectionRepo := repository.NewInspectionRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)

	channels = append([]notify.Channel{notify.NewInAppChannel(notificationRepo)}, channels...)
	dispatcher := notify.NewDispatcher(staffRepo, outboxRepo, notify.Options{
		MaxAttempts: cfg.Scheduler.OutboxMaxAttempts,
	}, channels...)

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	auditService := service.NewAuditService(auditRepo)
	roleService := service.NewRoleService(staffRepo, outboxRepo, dispatcher, auditService)
	configService := service.NewTenantConfigService(tenantRepo, auditService)
	inspectionService := service.NewInspectionService(inspectionRepo, roleService, configService, dispatcher, sealer, auditService)
	clientReviewService := service.NewClientReviewService(inspectionRepo, dispatcher, auditService)
	notificationService := service.NewNotificationService(notificationRepo)

	return &app{
		inspectionRepo:      inspectionRepo,
		outboxRepo:          outboxRepo,
		tenantRepo:          tenantRepo,
		dispatcher:          dispatcher,
		guard:               middleware.NewAuthGuard(authService, apiKeyRepo),
		inspectionHandler:   handlers.NewInspectionHandler(inspectionService),
		clientHandler:       handlers.NewClientHandler(clientReviewService),
		configHandler:       handlers.NewConfigHandler(configService),
		roleHandler:         handlers.NewRoleHandler(roleService),
		auditHandler:        handlers.NewAuditHandler(auditService),
		notificationHandler: handlers.NewNotificationHandler(notificationService),
	}
}

// registerRoutes mounts every /api/v1 route on mux
func (a *app) registerRoutes(mux *http.ServeMux) {
	staff := func(h http.HandlerFunc) http.Handler { return a.guard.Protect(h, models.AuthRoleStaff) }
	business := func(h http.HandlerFunc) http.Handler { return a.guard.Protect(h, models.AuthRoleBusiness) }
	client := func(h http.HandlerFunc) http.Handler { return a.guard.Protect(h, models.AuthRoleClient) }
	member := func(h http.HandlerFunc) http.Handler {
		return a.guard.Protect(h, models.AuthRoleStaff, models.AuthRoleBusiness, models.AuthRoleClient, models.AuthRoleAppUser)
	}

	// Business routes
	mux.Handle("GET /api/v1/business/quality-config", business(a.configHandler.GetQualityConfig))
	mux.Handle("PUT /api/v1/business/quality-config", business(a.configHandler.UpdateQualityConfig))
	mux.Handle("GET /api/v1/business/staff/{userId}/quality-role", business(a.roleHandler.GetQualityRole))
	mux.Handle("PUT /api/v1/business/staff/{userId}/quality-role", business(a.roleHandler.AssignQualityRole))
	mux.Handle("DELETE /api/v1/business/staff/{userId}/quality-role", business(a.roleHandler.RemoveQualityRole))
	mux.Handle("GET /api/v1/business/audit-logs", business(a.auditHandler.ListAuditLogs))

	// Staff routes
	mux.Handle("GET /api/v1/staff/quality-roles/me", staff(a.roleHandler.MyQualityRole))
	mux.Handle("POST /api/v1/staff/quality-inspections/detailed", staff(a.inspectionHandler.CreateDetailed))
	mux.Handle("POST /api/v1/staff/quality-inspections/simple", staff(a.inspectionHandler.CreateSimple))
	mux.Handle("GET /api/v1/staff/quality-inspections", staff(a.inspectionHandler.List))
	mux.Handle("GET /api/v1/staff/quality-inspections/pending", staff(a.inspectionHandler.Pending))
	mux.Handle("GET /api/v1/staff/quality-inspections/stats", staff(a.inspectionHandler.Stats))
	mux.Handle("GET /api/v1/staff/quality-inspections/export", staff(a.inspectionHandler.Export))
	mux.Handle("GET /api/v1/staff/quality-inspections/{id}", staff(a.inspectionHandler.Get))
	mux.Handle("PUT /api/v1/staff/quality-inspections/{id}", staff(a.inspectionHandler.Update))
	mux.Handle("DELETE /api/v1/staff/quality-inspections/{id}", staff(a.inspectionHandler.Delete))
	mux.Handle("GET /api/v1/staff/quality-inspections/{id}/history", staff(a.inspectionHandler.History))
	mux.Handle("PUT /api/v1/staff/quality-inspections/{id}/submit", staff(a.inspectionHandler.Submit))

	// Review workflow
	mux.Handle("PUT /api/v1/staff/quality-inspections/review/{id}/assign", staff(a.inspectionHandler.Assign))
	mux.Handle("PUT /api/v1/staff/quality-inspections/review/{id}/approve", staff(a.inspectionHandler.Approve))
	mux.Handle("PUT /api/v1/staff/quality-inspections/review/{id}/reject", staff(a.inspectionHandler.Reject))
	mux.Handle("PUT /api/v1/staff/quality-inspections/review/{id}/request-revision", staff(a.inspectionHandler.RequestRevision))
	mux.Handle("PUT /api/v1/staff/quality-inspections/final-approval/{id}/approve", staff(a.inspectionHandler.FinalApprove))
	mux.Handle("PUT /api/v1/staff/quality-inspections/final-approval/{id}/override", staff(a.inspectionHandler.Override))

	// Client routes
	mux.Handle("GET /api/v1/client/quality-inspections", client(a.clientHandler.List))
	mux.Handle("GET /api/v1/client/quality-inspections/{id}", client(a.clientHandler.Get))
	mux.Handle("PUT /api/v1/client/quality-inspections/{id}/review", client(a.clientHandler.Review))
	mux.Handle("PUT /api/v1/client/quality-inspections/{id}/approve", client(a.clientHandler.Approve))
	mux.Handle("PUT /api/v1/client/quality-inspections/{id}/reject", client(a.clientHandler.Reject))

	// Notifications
	mux.Handle("GET /api/v1/notifications", member(a.notificationHandler.List))
	mux.Handle("PUT /api/v1/notifications/{id}/read", member(a.notificationHandler.MarkRead))
}
