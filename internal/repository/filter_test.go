package repository

import (
	"testing"
	"time"

	"github.com/spec-kit/fieldops/internal/domain"
)

func TestWhereBuilderNumbersPlaceholders(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	where := newWhere("archived_at IS NULL")
	where.eq("tenant_id", "t1")
	in(where, "status", []domain.InvoiceStatus{domain.InvoiceStatusDraft, domain.InvoiceStatusSent})
	where.cmp("created_at", ">=", from)
	where.search(" Roof ", "title", "notes")

	want := "archived_at IS NULL AND tenant_id=$1 AND status IN ($2,$3) AND created_at >= $4 AND (LOWER(title) LIKE $5 OR LOWER(notes) LIKE $5)"
	if got := where.sql(); got != want {
		t.Fatalf("sql() =\n%s\nwant\n%s", got, want)
	}
	if len(where.args) != 5 {
		t.Fatalf("args = %v", where.args)
	}
	if where.args[4] != "%roof%" {
		t.Fatalf("search arg = %v", where.args[4])
	}
}

func TestWhereBuilderSkipsEmptyFilters(t *testing.T) {
	where := newWhere()
	in(where, "status", []domain.LeadStatus(nil))
	where.search("   ", "title")
	if got := where.sql(); got != "1=1" {
		t.Fatalf("sql() = %q, want 1=1", got)
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{name: "defaults", limit: 0, offset: -3, wantLimit: defaultListLimit, wantOffset: 0},
		{name: "capped", limit: 1000, offset: 10, wantLimit: 200, wantOffset: 10},
		{name: "passthrough", limit: 5, offset: 5, wantLimit: 5, wantOffset: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			limit, offset := pageBounds(tc.limit, tc.offset)
			if limit != tc.wantLimit || offset != tc.wantOffset {
				t.Fatalf("pageBounds(%d,%d) = %d,%d", tc.limit, tc.offset, limit, offset)
			}
		})
	}
}
