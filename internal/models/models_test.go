package models

import (
	"testing"
)

func intPtr(i int) *int { return &i }

func TestRecomputeDerivedDetailed(t *testing.T) {
	tests := []struct {
		name         string
		items        []ChecklistItem
		wantPassed   int
		wantFailed   int
		wantCritical bool
	}{
		{
			name:       "all pass",
			items:      []ChecklistItem{{Status: ItemPass}, {Status: ItemPass, Critical: true}},
			wantPassed: 2,
		},
		{
			name:       "non-critical failure",
			items:      []ChecklistItem{{Status: ItemPass}, {Status: ItemFail}},
			wantPassed: 1, wantFailed: 1,
		},
		{
			name:       "critical failure",
			items:      []ChecklistItem{{Status: ItemFail, Critical: true}, {Status: ItemNotApplicable}},
			wantFailed: 1, wantCritical: true,
		},
		{
			name: "empty checklist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := &Inspection{Type: InspectionTypeDetailed, ChecklistItems: tt.items, HasCriticalIssues: true}
			i.RecomputeDerived()

			if i.TotalItems != len(tt.items) {
				t.Errorf("TotalItems = %d, want %d", i.TotalItems, len(tt.items))
			}
			if i.PassedItems != tt.wantPassed || i.FailedItems != tt.wantFailed {
				t.Errorf("passed/failed = %d/%d, want %d/%d", i.PassedItems, i.FailedItems, tt.wantPassed, tt.wantFailed)
			}
			if i.HasCriticalIssues != tt.wantCritical {
				t.Errorf("HasCriticalIssues = %v, want %v", i.HasCriticalIssues, tt.wantCritical)
			}
		})
	}
}

func TestRecomputeDerivedSimpleRatingThreshold(t *testing.T) {
	for rating, want := range map[int]bool{1: true, 2: true, 3: false, 5: false} {
		i := &Inspection{Type: InspectionTypeSimple, OverallRating: intPtr(rating)}
		i.RecomputeDerived()
		if i.HasCriticalIssues != want {
			t.Errorf("rating %d: HasCriticalIssues = %v, want %v", rating, i.HasCriticalIssues, want)
		}
	}
}

func TestTenantConfigValidate(t *testing.T) {
	cfg := DefaultTenantInspectionConfig("t1")
	if msg := cfg.Validate(); msg != "" {
		t.Fatalf("default config should be valid, got %q", msg)
	}

	cfg.CanReview = []string{" "}
	if cfg.Validate() == "" {
		t.Error("blank review roles should be rejected")
	}

	cfg = DefaultTenantInspectionConfig("t1")
	cfg.FinalApprover = ""
	if cfg.Validate() == "" {
		t.Error("missing final approver should be rejected")
	}
}

func TestReviewNotificationRoles(t *testing.T) {
	cfg := DefaultTenantInspectionConfig("t1")
	roles := cfg.ReviewNotificationRoles()

	// operations_manager is both a reviewer and the final approver
	if len(roles) != 3 {
		t.Errorf("expected 3 distinct roles, got %v", roles)
	}
}

func TestMetadataScanValue(t *testing.T) {
	var m InspectionMetadata
	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if m.SchemaVersion != MetadataSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", m.SchemaVersion, MetadataSchemaVersion)
	}

	m.ClientReview = &ClientReviewRecord{Status: ClientReviewRejected, RequiresRework: true}
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var back InspectionMetadata
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if back.ClientReview == nil || !back.ClientReview.RequiresRework {
		t.Errorf("client review lost in round trip: %+v", back.ClientReview)
	}
	if back.Override != nil {
		t.Error("unset records must stay nil")
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage[string](nil, 41, 2, 20)
	if p.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", p.TotalPages)
	}
	if p.Items == nil {
		t.Error("items must never be nil")
	}
}
