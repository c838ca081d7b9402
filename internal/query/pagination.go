package query

import (
	"fmt"
	"math"

	"microblog/internal/domain"
)

// Pagination defaults and bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageBounds is the resolved pagination for one search call.
type PageBounds struct {
	Skip  int
	Take  int
	Page  int
	Limit int
}

// ResolvePagination applies defaults and validates bounds. A limit outside
// [1,100] or a page below 1 is rejected rather than clamped so client bugs
// surface instead of being masked.
func ResolvePagination(in *domain.Pagination) (PageBounds, error) {
	page := DefaultPage
	limit := DefaultLimit
	if in != nil {
		if in.Page != nil {
			page = *in.Page
		}
		if in.Limit != nil {
			limit = *in.Limit
		}
	}
	if page < 1 {
		return PageBounds{}, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if limit < 1 || limit > MaxLimit {
		return PageBounds{}, fmt.Errorf("limit must be in [1,%d], got %d", MaxLimit, limit)
	}
	// There is no upper bound on page, so the skip multiplication can
	// overflow. Saturate instead: a page past the data set is an empty page,
	// not a panic.
	skip := math.MaxInt
	if page-1 <= math.MaxInt/limit {
		skip = (page - 1) * limit
	}
	return PageBounds{Skip: skip, Take: limit, Page: page, Limit: limit}, nil
}

// Entity describes the search surface of one entity: which fields may be used
// as a sort key and what the defaults are. It is what keeps the user and post
// search paths a single routine instead of two parallel copies.
type Entity struct {
	Name         string
	SortFields   []string
	DefaultField string
	DefaultDesc  bool
}

// UserEntity and PostEntity are the two searchable entities.
var (
	UserEntity = Entity{
		Name:         "user",
		SortFields:   []string{FieldID, FieldEmail, FieldName, FieldCreatedAt, FieldUpdatedAt},
		DefaultField: FieldCreatedAt,
		DefaultDesc:  true,
	}
	PostEntity = Entity{
		Name:         "post",
		SortFields:   []string{FieldID, FieldTitle, FieldPublished, FieldCreatedAt, FieldUpdatedAt},
		DefaultField: FieldCreatedAt,
		DefaultDesc:  true,
	}
)

// AllowsSort reports whether field is a permitted sort key for the entity.
func (e Entity) AllowsSort(field string) bool {
	for _, f := range e.SortFields {
		if f == field {
			return true
		}
	}
	return false
}

// Ordering is the resolved single-field sort for one search call.
type Ordering struct {
	Field string
	Desc  bool
}

// ResolveSort applies the entity defaults and validates the field against the
// allow-list. Order must be "asc" or "desc" when present.
func (e Entity) ResolveSort(in *domain.SortSpec) (Ordering, error) {
	out := Ordering{Field: e.DefaultField, Desc: e.DefaultDesc}
	if in == nil {
		return out, nil
	}
	if in.Field != nil {
		if !e.AllowsSort(*in.Field) {
			return Ordering{}, fmt.Errorf("unknown %s sort field %q", e.Name, *in.Field)
		}
		out.Field = *in.Field
	}
	if in.Order != nil {
		switch *in.Order {
		case "asc":
			out.Desc = false
		case "desc":
			out.Desc = true
		default:
			return Ordering{}, fmt.Errorf("sort order must be \"asc\" or \"desc\", got %q", *in.Order)
		}
	}
	return out, nil
}
