package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/fieldops/internal/domain"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

func TestRecordIsCommitGated(t *testing.T) {
	f := newFixture(t)
	input := RecordInput{
		TenantID:   f.tenantID,
		EntityType: domain.EntityJob,
		EntityID:   "job-1",
		EventType:  domain.ActivityJobCreated,
		Message:    "created",
	}

	rollback := errors.New("boom")
	err := f.tx.WithinTx(f.ctx, func(ctx context.Context) error {
		if _, err := f.activity.Record(ctx, input); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if f.queue.len() != 0 {
		t.Fatalf("rolled back event was queued")
	}

	err = f.tx.WithinTx(f.ctx, func(ctx context.Context) error {
		_, err := f.activity.Record(ctx, input)
		if f.queue.len() != 0 {
			t.Fatal("event queued before commit")
		}
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if f.queue.len() != 1 {
		t.Fatalf("expected exactly one notification, got %d", f.queue.len())
	}
	n := f.queue.items[0]
	if n.TenantID != f.tenantID || n.EntityType != domain.EntityJob || n.EntityID != "job-1" || n.ActivityEventID == "" {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestRecordValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		input RecordInput
	}{
		{"missing tenant", RecordInput{EntityType: domain.EntityJob, EntityID: "x", EventType: domain.ActivityJobCreated}},
		{"missing entity", RecordInput{TenantID: f.tenantID, EntityType: domain.EntityJob, EventType: domain.ActivityJobCreated}},
		{"unknown entity type", RecordInput{TenantID: f.tenantID, EntityType: "SHIP", EntityID: "x", EventType: domain.ActivityJobCreated}},
		{"missing event type", RecordInput{TenantID: f.tenantID, EntityType: domain.EntityJob, EntityID: "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.activity.Record(f.ctx, tc.input)
			assertCode(t, err, apperrors.CodeInvalidInput)
		})
	}
}

func TestActivityListAndArchive(t *testing.T) {
	f := newFixture(t)
	job := f.job()
	svc := f.jobs()
	for _, st := range []domain.JobStatus{domain.JobStatusScheduled, domain.JobStatusInProgress} {
		if _, err := svc.UpdateStatus(f.ctx, f.tenantID, f.ownerID, job.ID, st); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
	}

	page, err := f.activity.List(f.ctx, f.tenantID, f.ownerID, domain.EntityJob, job.ID, PageRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 || page.Limit != 20 {
		t.Fatalf("unexpected page %+v", page)
	}

	tech := f.addMember(domain.RoleFieldTech)
	err = f.activity.Archive(f.ctx, f.tenantID, tech, page.Items[0].ID)
	assertCode(t, err, apperrors.CodeAccessDenied)

	if err := f.activity.Archive(f.ctx, f.tenantID, f.ownerID, page.Items[0].ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	page, err = f.activity.List(f.ctx, f.tenantID, tech, domain.EntityJob, job.ID, PageRequest{Limit: 500})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || page.Limit != 100 {
		t.Fatalf("archived event still listed: %+v", page)
	}
}

func TestActivityListRequiresMembership(t *testing.T) {
	f := newFixture(t)
	outsider := f.addUser("outsider@example.com")
	_, err := f.activity.List(f.ctx, f.tenantID, outsider, domain.EntityJob, "x", PageRequest{})
	assertCode(t, err, apperrors.CodeAccessDenied)

	_, err = f.activity.List(f.ctx, "missing-tenant", f.ownerID, domain.EntityJob, "x", PageRequest{})
	assertCode(t, err, apperrors.CodeNotFound)
}
