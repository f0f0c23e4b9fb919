package service

import (
	"testing"
	"time"

	"github.com/spec-kit/fieldops/internal/domain"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

func TestEstimateCreateTotalsAndDecisionScenario(t *testing.T) {
	f := newFixture(t)
	job := f.job()

	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: job.ID,
		Items: []EstimateItemInput{
			{Name: "Shingles", Quantity: dec("100"), UnitPrice: dec("25.00")},
			{Name: "Labor", Quantity: dec("8"), UnitPrice: dec("75.00")},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !est.Subtotal.Equal(dec("3100.00")) || !est.Total.Equal(dec("3100.00")) {
		t.Fatalf("expected 3100.00, got subtotal=%s total=%s", est.Subtotal, est.Total)
	}
	if est.Status != domain.EstimateStatusDraft {
		t.Fatalf("expected DRAFT, got %s", est.Status)
	}
	if est.Number != "EST-000001" {
		t.Fatalf("expected EST-000001, got %s", est.Number)
	}

	share, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, 14)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if share.ExpiresAt.After(f.now.Add(14*24*time.Hour)) || !share.ExpiresAt.After(f.now) {
		t.Fatalf("unexpected expiry %s", share.ExpiresAt)
	}

	view, err := f.public().Decide(f.ctx, share.Token, DecisionInput{Decision: domain.EstimateStatusRejected, SignerName: "Jane Doe"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if view.Status != domain.EstimateStatusRejected {
		t.Fatalf("expected REJECTED, got %s", view.Status)
	}

	_, err = f.public().Decide(f.ctx, share.Token, DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "Jane Doe"})
	assertCode(t, err, apperrors.CodeConflict)

	stored, err := f.store.Estimates().GetByID(f.ctx, f.tenantID, est.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != domain.EstimateStatusRejected {
		t.Fatalf("status changed to %s", stored.Status)
	}
	if stored.SignerName == nil || *stored.SignerName != "Jane Doe" || stored.DecidedAt == nil {
		t.Fatalf("decision fields not recorded: %+v", stored)
	}
}

func TestEstimateCreateValidation(t *testing.T) {
	f := newFixture(t)
	job := f.job()

	tests := []struct {
		name  string
		input EstimateCreateInput
		code  string
	}{
		{"no items", EstimateCreateInput{JobID: job.ID}, apperrors.CodeInvalidInput},
		{"zero quantity", EstimateCreateInput{JobID: job.ID, Items: []EstimateItemInput{{Name: "A", Quantity: dec("0"), UnitPrice: dec("1")}}}, apperrors.CodeInvalidInput},
		{"negative price", EstimateCreateInput{JobID: job.ID, Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("-1")}}}, apperrors.CodeInvalidInput},
		{"blank name", EstimateCreateInput{JobID: job.ID, Items: []EstimateItemInput{{Name: " ", Quantity: dec("1"), UnitPrice: dec("1")}}}, apperrors.CodeInvalidInput},
		{"unknown job", EstimateCreateInput{JobID: "missing", Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1")}}}, apperrors.CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, tc.input)
			assertCode(t, err, tc.code)
		})
	}
	if f.queue.len() != 0 {
		t.Fatalf("expected no notifications, got %d", f.queue.len())
	}
}

func TestEstimateMutationsRequireSalesRole(t *testing.T) {
	f := newFixture(t)
	tech := f.addMember(domain.RoleFieldTech)
	_, err := f.estimates().Create(f.ctx, f.tenantID, tech, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	assertCode(t, err, apperrors.CodeAccessDenied)
}

func TestEstimateUpdateReplacesItems(t *testing.T) {
	f := newFixture(t)
	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("10")}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	notes := "  second visit  "
	updated, err := f.estimates().Update(f.ctx, f.tenantID, f.ownerID, est.ID, EstimateUpdateInput{
		Items: []EstimateItemInput{
			{Name: "B", Quantity: dec("1.5"), UnitPrice: dec("10.005")},
			{Name: "C", Quantity: dec("2"), UnitPrice: dec("4.25")},
		},
		Notes: &notes,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	// 1.5 * 10.005 = 15.0075 -> 15.01
	if !updated.Total.Equal(dec("23.51")) {
		t.Fatalf("expected 23.51, got %s", updated.Total)
	}
	if updated.Notes != "second visit" {
		t.Fatalf("notes not trimmed: %q", updated.Notes)
	}
	stored, _ := f.store.Estimates().GetByID(f.ctx, f.tenantID, est.ID)
	if len(stored.Items) != 2 || stored.Items[0].Name != "B" {
		t.Fatalf("items not replaced: %+v", stored.Items)
	}
}

func TestEstimateNumbersIncrementPerTenant(t *testing.T) {
	f := newFixture(t)
	job := f.job()
	for i, want := range []string{"EST-000001", "EST-000002"} {
		est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
			JobID: job.ID,
			Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1")}},
		})
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		if est.Number != want {
			t.Fatalf("expected %s, got %s", want, est.Number)
		}
	}
}

func TestEstimateShareBounds(t *testing.T) {
	f := newFixture(t)
	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, days := range []int{-1, 366} {
		_, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, days)
		assertCode(t, err, apperrors.CodeInvalidInput)
	}

	first, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, 0)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if !first.ExpiresAt.Equal(f.now.Add(14 * 24 * time.Hour)) {
		t.Fatalf("expected default 14 days, got %s", first.ExpiresAt)
	}
	second, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, 1)
	if err != nil {
		t.Fatalf("Share again: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("expected a fresh token")
	}
	_, err = f.public().GetByToken(f.ctx, first.Token)
	assertCode(t, err, apperrors.CodeNotFound)
	if _, err := f.public().GetByToken(f.ctx, second.Token); err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
}

func TestPublicAccessPrecedence(t *testing.T) {
	f := newFixture(t)
	svc := f.estimates()
	est, err := svc.Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	share, err := svc.Share(f.ctx, f.tenantID, f.ownerID, est.ID, 1)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	f.advance(48 * time.Hour)
	_, err = f.public().GetByToken(f.ctx, share.Token)
	assertCode(t, err, apperrors.CodeLinkExpired)
	_, err = f.public().Decide(f.ctx, share.Token, DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "Jane"})
	assertCode(t, err, apperrors.CodeLinkExpired)

	if err := svc.Archive(f.ctx, f.tenantID, f.ownerID, est.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	_, err = f.public().Decide(f.ctx, share.Token, DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "Jane"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestDecideValidation(t *testing.T) {
	f := newFixture(t)
	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	share, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, 0)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	tests := []struct {
		name  string
		input DecisionInput
	}{
		{"draft is not a decision", DecisionInput{Decision: domain.EstimateStatusDraft, SignerName: "Jane"}},
		{"blank signer", DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "   "}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.public().Decide(f.ctx, share.Token, tc.input)
			assertCode(t, err, apperrors.CodeInvalidInput)
		})
	}

	_, err = f.public().Decide(f.ctx, "unknown", DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "Jane"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestDecisionEventTargetsJob(t *testing.T) {
	f := newFixture(t)
	est := f.acceptedEstimate()

	var found *domain.ActivityEvent
	for _, e := range f.store.Activity().All() {
		if e.EventType == domain.ActivityEstimateAccepted {
			e := e
			found = &e
		}
	}
	if found == nil {
		t.Fatal("expected ESTIMATE_ACCEPTED event")
	}
	if found.EntityType != domain.EntityJob || found.EntityID != est.JobID {
		t.Fatalf("event recorded against %s/%s", found.EntityType, found.EntityID)
	}
	if found.ActorID != nil {
		t.Fatal("public decision must not carry an actor")
	}
	if found.Metadata["estimateId"] != est.ID || found.Metadata["signerName"] != "Jane" {
		t.Fatalf("unexpected metadata %v", found.Metadata)
	}
}

func TestPublicViewOmitsInternalFields(t *testing.T) {
	f := newFixture(t)
	notes := "internal only"
	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "A", Quantity: dec("3"), UnitPrice: dec("2.50")}},
		Notes: &notes,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	share, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, 0)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	view, err := f.public().GetByToken(f.ctx, share.Token)
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if view.ID != est.ID || len(view.Items) != 1 || !view.Total.Equal(dec("7.50")) {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestRevokeShareDisablesToken(t *testing.T) {
	f := newFixture(t)
	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	share, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, 0)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if _, err := f.estimates().RevokeShare(f.ctx, f.tenantID, f.ownerID, est.ID); err != nil {
		t.Fatalf("RevokeShare: %v", err)
	}
	_, err = f.public().GetByToken(f.ctx, share.Token)
	assertCode(t, err, apperrors.CodeNotFound)
}
