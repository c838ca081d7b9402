// Package storage provides the store interface and implementations for the
// microblog API. The default MemoryStore backs tests and quick starts; SQLite
// and PostgreSQL backends live in subpackages behind build tags.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"microblog/internal/domain"
	"microblog/internal/query"
)

// Store is the persistence interface consumed by the search service and the
// HTTP handlers. Every id-targeted mutation checks existence first and
// returns ErrNotFound before touching anything, so NotFound behaves the same
// across lookups and mutations. The check-then-mutate pair is not atomic; a
// concurrent delete in between surfaces as ErrNotFound from the mutate step.
type Store interface {
	// Users
	QueryUsers(ctx context.Context, opts query.Options) ([]domain.User, error)
	CountUsers(ctx context.Context, p query.Predicate) (int64, error)
	GetUser(ctx context.Context, id string) (domain.UserWithPosts, error)
	CreateUser(ctx context.Context, in domain.CreateUser) (domain.User, error)
	UpdateUser(ctx context.Context, id string, in domain.UpdateUser) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	// Posts
	QueryPosts(ctx context.Context, opts query.Options) ([]domain.PostWithAuthor, error)
	CountPosts(ctx context.Context, p query.Predicate) (int64, error)
	GetPost(ctx context.Context, id string) (domain.PostWithAuthor, error)
	CreatePost(ctx context.Context, in domain.CreatePost) (domain.PostWithAuthor, error)
	UpdatePost(ctx context.Context, id string, in domain.UpdatePost) (domain.PostWithAuthor, error)
	DeletePost(ctx context.Context, id string) error
	SetPostPublished(ctx context.Context, id string, published bool) (domain.PostWithAuthor, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
	// Close releases resources held by the store.
	Close() error
}

// MemoryStore is an in-memory implementation for quick start and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	posts map[string]domain.Post
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]domain.User), posts: make(map[string]domain.Post)}
}

func (m *MemoryStore) QueryUsers(ctx context.Context, opts query.Options) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []domain.User
	for _, u := range m.users {
		ok, err := m.matchUser(u, opts.Predicate)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, u)
		}
	}
	if err := sortUsers(matched, opts.OrderBy, opts.OrderDesc); err != nil {
		return nil, err
	}
	return pageSlice(matched, opts.Offset, opts.Limit), nil
}

func (m *MemoryStore) CountUsers(ctx context.Context, p query.Predicate) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, u := range m.users {
		ok, err := m.matchUser(u, p)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (domain.UserWithPosts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.UserWithPosts{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	out := domain.UserWithPosts{User: u, Posts: []domain.PostSummary{}}
	for _, p := range m.postsOfLocked(id) {
		out.Posts = append(out.Posts, domain.PostSummary{ID: p.ID, Title: p.Title, Published: p.Published})
	}
	return out, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, in domain.CreateUser) (domain.User, error) {
	if in.Email == "" {
		return domain.User{}, fmt.Errorf("email required: %w", ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == in.Email {
			return domain.User{}, fmt.Errorf("email %s already in use: %w", in.Email, ErrConflict)
		}
	}
	now := time.Now().UTC()
	u := domain.User{ID: uuid.New().String(), Email: in.Email, Name: in.Name, CreatedAt: now, UpdatedAt: now}
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, id string, in domain.UpdateUser) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if in.Email != nil {
		for _, other := range m.users {
			if other.ID != id && other.Email == *in.Email {
				return domain.User{}, fmt.Errorf("email %s already in use: %w", *in.Email, ErrConflict)
			}
		}
		u.Email = *in.Email
	}
	if in.Name.Set {
		u.Name = in.Name.Ptr()
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if n := len(m.postsOfLocked(id)); n > 0 {
		return fmt.Errorf("user %s has %d posts: %w", id, n, ErrConflict)
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryStore) QueryPosts(ctx context.Context, opts query.Options) ([]domain.PostWithAuthor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []domain.Post
	for _, p := range m.posts {
		ok, err := m.matchPost(p, opts.Predicate)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, p)
		}
	}
	if err := sortPosts(matched, opts.OrderBy, opts.OrderDesc); err != nil {
		return nil, err
	}
	matched = pageSlice(matched, opts.Offset, opts.Limit)
	out := make([]domain.PostWithAuthor, 0, len(matched))
	for _, p := range matched {
		out = append(out, m.withAuthorLocked(p))
	}
	return out, nil
}

func (m *MemoryStore) CountPosts(ctx context.Context, p query.Predicate) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, post := range m.posts {
		ok, err := m.matchPost(post, p)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetPost(ctx context.Context, id string) (domain.PostWithAuthor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPostLocked(id)
}

func (m *MemoryStore) getPostLocked(id string) (domain.PostWithAuthor, error) {
	p, ok := m.posts[id]
	if !ok {
		return domain.PostWithAuthor{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return m.withAuthorLocked(p), nil
}

func (m *MemoryStore) CreatePost(ctx context.Context, in domain.CreatePost) (domain.PostWithAuthor, error) {
	if in.Title == "" || in.AuthorID == "" {
		return domain.PostWithAuthor{}, fmt.Errorf("title and authorId required: %w", ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[in.AuthorID]; !ok {
		return domain.PostWithAuthor{}, fmt.Errorf("author %s does not exist: %w", in.AuthorID, ErrConflict)
	}
	now := time.Now().UTC()
	p := domain.Post{
		ID:        uuid.New().String(),
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
		AuthorID:  in.AuthorID,
	}
	if in.Published != nil {
		p.Published = *in.Published
	}
	m.posts[p.ID] = p
	return m.withAuthorLocked(p), nil
}

func (m *MemoryStore) UpdatePost(ctx context.Context, id string, in domain.UpdatePost) (domain.PostWithAuthor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.PostWithAuthor{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Content.Set {
		p.Content = in.Content.Ptr()
	}
	if in.Published != nil {
		p.Published = *in.Published
	}
	p.UpdatedAt = time.Now().UTC()
	m.posts[id] = p
	return m.withAuthorLocked(p), nil
}

func (m *MemoryStore) DeletePost(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	delete(m.posts, id)
	return nil
}

func (m *MemoryStore) SetPostPublished(ctx context.Context, id string, published bool) (domain.PostWithAuthor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.PostWithAuthor{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	p.Published = published
	p.UpdatedAt = time.Now().UTC()
	m.posts[id] = p
	return m.withAuthorLocked(p), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// postsOfLocked returns the posts of one author ordered by creation time.
// Callers must hold at least a read lock.
func (m *MemoryStore) postsOfLocked(authorID string) []domain.Post {
	var out []domain.Post
	for _, p := range m.posts {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStore) withAuthorLocked(p domain.Post) domain.PostWithAuthor {
	out := domain.PostWithAuthor{Post: p}
	if u, ok := m.users[p.AuthorID]; ok {
		out.Author = domain.AuthorSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return out
}

// pageSlice applies offset/limit bounds to an already sorted slice.
func pageSlice[T any](in []T, offset, limit int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func sortUsers(users []domain.User, field string, desc bool) error {
	if field == "" {
		field = query.FieldCreatedAt
	}
	key, err := userSortKey(field)
	if err != nil {
		return err
	}
	sort.SliceStable(users, func(i, j int) bool {
		c := key(users[i], users[j])
		if c == 0 {
			c = strings.Compare(users[i].ID, users[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return nil
}

func userSortKey(field string) (func(a, b domain.User) int, error) {
	switch field {
	case query.FieldID:
		return func(a, b domain.User) int { return strings.Compare(a.ID, b.ID) }, nil
	case query.FieldEmail:
		return func(a, b domain.User) int { return strings.Compare(a.Email, b.Email) }, nil
	case query.FieldName:
		return func(a, b domain.User) int { return compareNullable(a.Name, b.Name) }, nil
	case query.FieldCreatedAt:
		return func(a, b domain.User) int { return a.CreatedAt.Compare(b.CreatedAt) }, nil
	case query.FieldUpdatedAt:
		return func(a, b domain.User) int { return a.UpdatedAt.Compare(b.UpdatedAt) }, nil
	default:
		return nil, fmt.Errorf("unknown user sort field %q: %w", field, ErrValidation)
	}
}

func sortPosts(posts []domain.Post, field string, desc bool) error {
	if field == "" {
		field = query.FieldCreatedAt
	}
	key, err := postSortKey(field)
	if err != nil {
		return err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		c := key(posts[i], posts[j])
		if c == 0 {
			c = strings.Compare(posts[i].ID, posts[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return nil
}

func postSortKey(field string) (func(a, b domain.Post) int, error) {
	switch field {
	case query.FieldID:
		return func(a, b domain.Post) int { return strings.Compare(a.ID, b.ID) }, nil
	case query.FieldTitle:
		return func(a, b domain.Post) int { return strings.Compare(a.Title, b.Title) }, nil
	case query.FieldPublished:
		return func(a, b domain.Post) int { return compareBool(a.Published, b.Published) }, nil
	case query.FieldCreatedAt:
		return func(a, b domain.Post) int { return a.CreatedAt.Compare(b.CreatedAt) }, nil
	case query.FieldUpdatedAt:
		return func(a, b domain.Post) int { return a.UpdatedAt.Compare(b.UpdatedAt) }, nil
	default:
		return nil, fmt.Errorf("unknown post sort field %q: %w", field, ErrValidation)
	}
}

// compareNullable orders nulls first, matching the SQL backends.
func compareNullable(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return strings.Compare(*a, *b)
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	default:
		return 1
	}
}
