package service

import (
	"context"
	"testing"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// interleavedEstimates runs between once, right after the next GetByID returns,
// so a competing write lands between the service's read and its write.
type interleavedEstimates struct {
	repository.EstimateRepository
	between func()
}

func (r *interleavedEstimates) GetByID(ctx context.Context, tenantID, id string) (*domain.Estimate, error) {
	est, err := r.EstimateRepository.GetByID(ctx, tenantID, id)
	if fn := r.between; fn != nil {
		r.between = nil
		fn()
	}
	return est, err
}

func (f *fixture) estimatesWith(repo repository.EstimateRepository) *EstimateService {
	return NewEstimateService(EstimateDependencies{
		EstimateRepo: repo,
		JobRepo:      f.store.Jobs(),
		Guard:        f.guard,
		Activity:     f.activity,
		Tx:           f.tx,
		Clock:        f.clock,
	})
}

func (f *fixture) sharedEstimate() (*domain.Estimate, string) {
	f.t.Helper()
	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "Labor", Quantity: dec("1"), UnitPrice: dec("80.00")}},
	})
	if err != nil {
		f.t.Fatalf("create estimate: %v", err)
	}
	share, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, 0)
	if err != nil {
		f.t.Fatalf("share: %v", err)
	}
	return est, share.Token
}

func TestDecisionSurvivesConcurrentEstimateWrites(t *testing.T) {
	tests := []struct {
		name    string
		run     func(f *fixture, svc *EstimateService, id string) error
		wantErr string
	}{
		{
			name: "reshare",
			run: func(f *fixture, svc *EstimateService, id string) error {
				_, err := svc.Share(f.ctx, f.tenantID, f.ownerID, id, 7)
				return err
			},
		},
		{
			name: "revoke share",
			run: func(f *fixture, svc *EstimateService, id string) error {
				_, err := svc.RevokeShare(f.ctx, f.tenantID, f.ownerID, id)
				return err
			},
		},
		{
			name: "archive",
			run: func(f *fixture, svc *EstimateService, id string) error {
				return svc.Archive(f.ctx, f.tenantID, f.ownerID, id)
			},
		},
		{
			name: "set status",
			run: func(f *fixture, svc *EstimateService, id string) error {
				_, err := svc.SetStatus(f.ctx, f.tenantID, f.ownerID, id, domain.EstimateStatusSent)
				return err
			},
			wantErr: apperrors.CodeConflict,
		},
		{
			name: "update notes",
			run: func(f *fixture, svc *EstimateService, id string) error {
				notes := "call before arriving"
				_, err := svc.Update(f.ctx, f.tenantID, f.ownerID, id, EstimateUpdateInput{Notes: &notes})
				return err
			},
			wantErr: apperrors.CodeConflict,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			est, token := f.sharedEstimate()

			repo := &interleavedEstimates{EstimateRepository: f.store.Estimates()}
			repo.between = func() {
				if _, err := f.public().Decide(f.ctx, token, DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "Jane"}); err != nil {
					t.Fatalf("decide: %v", err)
				}
			}

			err := tc.run(f, f.estimatesWith(repo), est.ID)
			if tc.wantErr != "" {
				assertCode(t, err, tc.wantErr)
			} else if err != nil {
				t.Fatalf("write after decision: %v", err)
			}

			stored, err := f.store.Estimates().GetByID(f.ctx, f.tenantID, est.ID)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if stored.Status != domain.EstimateStatusAccepted || stored.SignerName == nil || *stored.SignerName != "Jane" {
				t.Fatalf("decision lost: status=%s signer=%v", stored.Status, stored.SignerName)
			}
		})
	}
}

func TestSecondDecisionRejectedAfterReshare(t *testing.T) {
	f := newFixture(t)
	est, token := f.sharedEstimate()

	repo := &interleavedEstimates{EstimateRepository: f.store.Estimates()}
	repo.between = func() {
		if _, err := f.public().Decide(f.ctx, token, DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "Jane"}); err != nil {
			t.Fatalf("decide: %v", err)
		}
	}
	share, err := f.estimatesWith(repo).Share(f.ctx, f.tenantID, f.ownerID, est.ID, 7)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	_, err = f.public().Decide(f.ctx, share.Token, DecisionInput{Decision: domain.EstimateStatusRejected, SignerName: "Mallory"})
	assertCode(t, err, apperrors.CodeConflict)

	stored, _ := f.store.Estimates().GetByID(f.ctx, f.tenantID, est.ID)
	if stored.Status != domain.EstimateStatusAccepted || *stored.SignerName != "Jane" {
		t.Fatalf("second decision applied: status=%s signer=%s", stored.Status, *stored.SignerName)
	}
}

func TestStatusOverrideDoesNotReopenDecision(t *testing.T) {
	f := newFixture(t)
	est, token := f.sharedEstimate()
	if _, err := f.public().Decide(f.ctx, token, DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "Jane"}); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if _, err := f.estimates().SetStatus(f.ctx, f.tenantID, f.ownerID, est.ID, domain.EstimateStatusDraft); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	_, err := f.public().Decide(f.ctx, token, DecisionInput{Decision: domain.EstimateStatusRejected, SignerName: "Mallory"})
	assertCode(t, err, apperrors.CodeConflict)

	stored, _ := f.store.Estimates().GetByID(f.ctx, f.tenantID, est.ID)
	if stored.SignerName == nil || *stored.SignerName != "Jane" || stored.DecidedAt == nil {
		t.Fatalf("decision fields overwritten: %+v", stored)
	}
}
