package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/spec-kit/fieldops/internal/domain"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

func TestInvoiceNumbersIndependentOfEstimates(t *testing.T) {
	f := newFixture(t)
	first := f.acceptedEstimate()
	second := f.acceptedEstimate()

	for i, est := range []*domain.Estimate{first, second} {
		inv, err := f.invoices().CreateFromEstimate(f.ctx, f.tenantID, f.ownerID, InvoiceCreateInput{EstimateID: est.ID})
		if err != nil {
			t.Fatalf("CreateFromEstimate: %v", err)
		}
		want := fmt.Sprintf("INV-%06d", i+1)
		if inv.Number != want {
			t.Fatalf("expected %s, got %s", want, inv.Number)
		}
		if inv.Status != domain.InvoiceStatusDraft || !inv.Total.Equal(est.Total) {
			t.Fatalf("unexpected invoice %+v", inv)
		}
		if len(inv.Items) != len(est.Items) || inv.Items[0].Name != est.Items[0].Name {
			t.Fatalf("items not snapshotted: %+v", inv.Items)
		}
	}
}

func TestInvoiceRequiresAcceptedEstimate(t *testing.T) {
	f := newFixture(t)
	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "A", Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = f.invoices().CreateFromEstimate(f.ctx, f.tenantID, f.ownerID, InvoiceCreateInput{EstimateID: est.ID})
	assertCode(t, err, apperrors.CodeConflict)

	_, err = f.invoices().CreateFromEstimate(f.ctx, f.tenantID, f.ownerID, InvoiceCreateInput{EstimateID: "missing"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestInvoiceSnapshotSurvivesEstimateEdits(t *testing.T) {
	f := newFixture(t)
	est := f.acceptedEstimate()
	inv, err := f.invoices().CreateFromEstimate(f.ctx, f.tenantID, f.ownerID, InvoiceCreateInput{EstimateID: est.ID})
	if err != nil {
		t.Fatalf("CreateFromEstimate: %v", err)
	}
	if _, err := f.estimates().Update(f.ctx, f.tenantID, f.ownerID, est.ID, EstimateUpdateInput{
		Items: []EstimateItemInput{{Name: "Changed", Quantity: dec("9"), UnitPrice: dec("9")}},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	stored, err := f.invoices().Get(f.ctx, f.tenantID, f.ownerID, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Items[0].Name != "Labor" || !stored.Total.Equal(dec("100.00")) {
		t.Fatalf("invoice changed with estimate: %+v", stored)
	}
}

func TestInvoiceTransitionTable(t *testing.T) {
	all := []domain.InvoiceStatus{
		domain.InvoiceStatusDraft,
		domain.InvoiceStatusSent,
		domain.InvoiceStatusPaid,
		domain.InvoiceStatusVoid,
	}
	paths := map[domain.InvoiceStatus][]domain.InvoiceStatus{
		domain.InvoiceStatusDraft: nil,
		domain.InvoiceStatusSent:  {domain.InvoiceStatusSent},
		domain.InvoiceStatusPaid:  {domain.InvoiceStatusSent, domain.InvoiceStatusPaid},
		domain.InvoiceStatusVoid:  {domain.InvoiceStatusVoid},
	}

	for _, from := range all {
		for _, to := range all {
			allowed := isValidTransition(from, to)
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				f := newFixture(t)
				svc := f.invoices()
				inv, err := svc.CreateFromEstimate(f.ctx, f.tenantID, f.ownerID, InvoiceCreateInput{EstimateID: f.acceptedEstimate().ID})
				if err != nil {
					t.Fatalf("CreateFromEstimate: %v", err)
				}
				for _, step := range paths[from] {
					if _, err := svc.UpdateStatus(f.ctx, f.tenantID, f.ownerID, inv.ID, step); err != nil {
						t.Fatalf("setup step %s: %v", step, err)
					}
				}
				before, _ := f.store.Invoices().GetByID(f.ctx, f.tenantID, inv.ID)
				eventsBefore := len(f.store.Activity().All())
				queuedBefore := f.queue.len()

				updated, err := svc.UpdateStatus(f.ctx, f.tenantID, f.ownerID, inv.ID, to)
				if allowed {
					if err != nil {
						t.Fatalf("expected success, got %v", err)
					}
					if updated.Status != to {
						t.Fatalf("expected %s, got %s", to, updated.Status)
					}
					if len(f.store.Activity().All()) != eventsBefore+1 {
						t.Fatal("expected one status event")
					}
					return
				}

				assertCode(t, err, apperrors.CodeConflict)
				after, _ := f.store.Invoices().GetByID(f.ctx, f.tenantID, inv.ID)
				if after.Status != before.Status || !after.UpdatedAt.Equal(before.UpdatedAt) {
					t.Fatalf("failed transition mutated invoice: %+v", after)
				}
				if len(f.store.Activity().All()) != eventsBefore || f.queue.len() != queuedBefore {
					t.Fatal("failed transition emitted an event")
				}
			})
		}
	}
}

func TestInvoiceTimestampsStampedOnce(t *testing.T) {
	f := newFixture(t)
	svc := f.invoices()
	inv, err := svc.CreateFromEstimate(f.ctx, f.tenantID, f.ownerID, InvoiceCreateInput{EstimateID: f.acceptedEstimate().ID})
	if err != nil {
		t.Fatalf("CreateFromEstimate: %v", err)
	}
	sent, err := svc.UpdateStatus(f.ctx, f.tenantID, f.ownerID, inv.ID, domain.InvoiceStatusSent)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.SentAt == nil || !sent.SentAt.Equal(f.now) {
		t.Fatalf("sent-at not stamped: %v", sent.SentAt)
	}
	sentAt := *sent.SentAt
	f.advance(time.Hour)
	paid, err := svc.UpdateStatus(f.ctx, f.tenantID, f.ownerID, inv.ID, domain.InvoiceStatusPaid)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if !paid.SentAt.Equal(sentAt) || paid.PaidAt == nil || !paid.PaidAt.Equal(f.now) {
		t.Fatalf("unexpected timestamps sent=%v paid=%v", paid.SentAt, paid.PaidAt)
	}
	if !paid.Status.Terminal() {
		t.Fatal("PAID must be terminal")
	}
}

func TestInvoiceUnknownStatusIsConflict(t *testing.T) {
	f := newFixture(t)
	svc := f.invoices()
	inv, err := svc.CreateFromEstimate(f.ctx, f.tenantID, f.ownerID, InvoiceCreateInput{EstimateID: f.acceptedEstimate().ID})
	if err != nil {
		t.Fatalf("CreateFromEstimate: %v", err)
	}
	eventsBefore := len(f.store.Activity().All())

	_, err = svc.UpdateStatus(f.ctx, f.tenantID, f.ownerID, inv.ID, domain.InvoiceStatus("LOST"))
	assertCode(t, err, apperrors.CodeConflict)
	stored, _ := f.store.Invoices().GetByID(f.ctx, f.tenantID, inv.ID)
	if stored.Status != domain.InvoiceStatusDraft || len(f.store.Activity().All()) != eventsBefore {
		t.Fatalf("unknown target mutated invoice: %s", stored.Status)
	}

	_, err = svc.UpdateStatus(f.ctx, f.tenantID, f.ownerID, "whatever", domain.InvoiceStatus("LOST"))
	assertCode(t, err, apperrors.CodeNotFound)
}
