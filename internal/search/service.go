// Package search composes the query compiler, pagination, and the store into
// the paginated search operations for users and posts.
package search

import (
	"context"
	"fmt"

	"microblog/internal/domain"
	"microblog/internal/query"
	"microblog/internal/storage"
)

// Service runs paginated searches against a store.
type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// Users runs a user search: compile the filter, then issue a bounded fetch and
// a count against the same predicate.
func (s *Service) Users(ctx context.Context, req domain.SearchUsersRequest) (domain.Page[domain.User], error) {
	pred := query.CompileUserFilter(req.Filter)
	return run(ctx, query.UserEntity, req.Sort, req.Pagination, pred,
		s.store.QueryUsers, s.store.CountUsers)
}

// Posts runs a post search.
func (s *Service) Posts(ctx context.Context, req domain.SearchPostsRequest) (domain.Page[domain.PostWithAuthor], error) {
	pred := query.CompilePostFilter(req.Filter)
	return run(ctx, query.PostEntity, req.Sort, req.Pagination, pred,
		s.store.QueryPosts, s.store.CountPosts)
}

// run is the shared search path for both entities. The fetch and the count
// execute concurrently against the same predicate; they are two independent
// reads, so a write landing between them can skew total relative to the page
// contents. That window is accepted, not guarded.
func run[T any](
	ctx context.Context,
	entity query.Entity,
	sort *domain.SortSpec,
	pagination *domain.Pagination,
	pred query.Predicate,
	fetch func(context.Context, query.Options) ([]T, error),
	count func(context.Context, query.Predicate) (int64, error),
) (domain.Page[T], error) {
	bounds, err := query.ResolvePagination(pagination)
	if err != nil {
		return domain.Page[T]{}, wrapValidation(err)
	}
	order, err := entity.ResolveSort(sort)
	if err != nil {
		return domain.Page[T]{}, wrapValidation(err)
	}

	opts := query.Options{
		Predicate: pred,
		OrderBy:   order.Field,
		OrderDesc: order.Desc,
		Limit:     bounds.Take,
		Offset:    bounds.Skip,
	}

	var (
		data     []T
		total    int64
		fetchErr error
		countErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		total, countErr = count(ctx, pred)
	}()
	data, fetchErr = fetch(ctx, opts)
	<-done

	if fetchErr != nil {
		return domain.Page[T]{}, fetchErr
	}
	if countErr != nil {
		return domain.Page[T]{}, countErr
	}
	if data == nil {
		data = []T{}
	}
	return domain.Page[T]{
		Data:       data,
		Total:      total,
		Page:       bounds.Page,
		Limit:      bounds.Limit,
		TotalPages: totalPages(total, bounds.Limit),
	}, nil
}

// totalPages is ceil(total/limit), and 0 when nothing matched.
func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// wrapValidation tags a pagination/sort failure with the storage validation
// sentinel so the HTTP boundary maps it to a 400.
func wrapValidation(err error) error {
	return fmt.Errorf("%v: %w", err, storage.ErrValidation)
}
