package query

import (
	"math"
	"strings"
	"testing"

	"microblog/internal/domain"
)

func intPtr(n int) *int { return &n }

func TestResolvePaginationDefaults(t *testing.T) {
	b, err := ResolvePagination(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Page != 1 || b.Limit != 20 || b.Skip != 0 || b.Take != 20 {
		t.Errorf("unexpected defaults: %+v", b)
	}

	b, err = ResolvePagination(&domain.Pagination{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Page != 1 || b.Limit != 20 {
		t.Errorf("empty pagination should use defaults: %+v", b)
	}
}

func TestResolvePaginationSkip(t *testing.T) {
	b, err := ResolvePagination(&domain.Pagination{Page: intPtr(3), Limit: intPtr(25)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Skip != 50 || b.Take != 25 || b.Page != 3 || b.Limit != 25 {
		t.Errorf("unexpected bounds: %+v", b)
	}
}

func TestResolvePaginationRejects(t *testing.T) {
	tests := []struct {
		name    string
		in      *domain.Pagination
		wantErr string
	}{
		{"zero page", &domain.Pagination{Page: intPtr(0)}, "page must be >= 1"},
		{"negative page", &domain.Pagination{Page: intPtr(-1)}, "page must be >= 1"},
		{"zero limit", &domain.Pagination{Limit: intPtr(0)}, "limit must be in [1,100]"},
		{"limit over max", &domain.Pagination{Limit: intPtr(101)}, "limit must be in [1,100]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolvePagination(tt.in)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}

	// Bounds are inclusive: 1 and 100 both pass.
	for _, limit := range []int{1, 100} {
		if _, err := ResolvePagination(&domain.Pagination{Limit: intPtr(limit)}); err != nil {
			t.Errorf("limit %d should be accepted: %v", limit, err)
		}
	}
}

func TestResolvePaginationHugePageSaturates(t *testing.T) {
	// page has no documented maximum, so the skip multiplication must not
	// overflow into a negative offset.
	b, err := ResolvePagination(&domain.Pagination{Page: intPtr(math.MaxInt), Limit: intPtr(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Skip < 0 {
		t.Fatalf("skip overflowed negative: %d", b.Skip)
	}
	if b.Skip != math.MaxInt {
		t.Errorf("expected saturated skip, got %d", b.Skip)
	}
	if b.Page != math.MaxInt || b.Limit != 2 {
		t.Errorf("unexpected bounds: %+v", b)
	}

	// The largest non-saturating page still computes exactly.
	b, err = ResolvePagination(&domain.Pagination{Page: intPtr(math.MaxInt / 2), Limit: intPtr(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Skip != (math.MaxInt/2-1)*2 {
		t.Errorf("unexpected skip: %d", b.Skip)
	}
}

func TestResolveSortDefaults(t *testing.T) {
	for _, e := range []Entity{UserEntity, PostEntity} {
		ord, err := e.ResolveSort(nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", e.Name, err)
		}
		if ord.Field != FieldCreatedAt || !ord.Desc {
			t.Errorf("%s: expected createdAt desc default, got %+v", e.Name, ord)
		}
	}
}

func TestResolveSortAllowList(t *testing.T) {
	email := FieldEmail
	asc := "asc"
	ord, err := UserEntity.ResolveSort(&domain.SortSpec{Field: &email, Order: &asc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ord.Field != FieldEmail || ord.Desc {
		t.Errorf("unexpected ordering: %+v", ord)
	}

	// email is not a post sort field.
	if _, err := PostEntity.ResolveSort(&domain.SortSpec{Field: &email}); err == nil {
		t.Error("expected error for post sort on email")
	}

	bogus := "passwordHash"
	if _, err := UserEntity.ResolveSort(&domain.SortSpec{Field: &bogus}); err == nil {
		t.Error("expected error for unknown sort field")
	}

	sideways := "sideways"
	if _, err := UserEntity.ResolveSort(&domain.SortSpec{Order: &sideways}); err == nil {
		t.Error("expected error for invalid sort order")
	}
}

func TestResolveSortOrderOnly(t *testing.T) {
	// Order without field keeps the entity default field.
	asc := "asc"
	ord, err := PostEntity.ResolveSort(&domain.SortSpec{Order: &asc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ord.Field != FieldCreatedAt || ord.Desc {
		t.Errorf("unexpected ordering: %+v", ord)
	}
}
