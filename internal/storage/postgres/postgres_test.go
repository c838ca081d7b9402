//go:build postgres

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"microblog/internal/domain"
	"microblog/internal/query"
	"microblog/internal/storage"
)

// testDB holds a shared database connection for test suites.
// It's initialized once via TestMain and reused across test functions.
var testDB struct {
	connStr   string
	pool      *pgxpool.Pool
	store     *Store
	container testcontainers.Container
}

// TestMain sets up a PostgreSQL database for tests.
// It supports two modes:
//  1. DATABASE_URL env var - uses an existing PostgreSQL instance (CI/custom)
//  2. testcontainers-go - automatically starts a PostgreSQL container
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("microblog_test"),
			tcpostgres.WithUsername("microblog"),
			tcpostgres.WithPassword("microblog"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}
		testDB.container = container

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
			_ = container.Terminate(ctx)
			os.Exit(1)
		}
	}

	testDB.connStr = connStr

	// Create the store (runs migrations)
	store, err := New(connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create store: %v\n", err)
		if testDB.container != nil {
			_ = testDB.container.Terminate(ctx)
		}
		os.Exit(1)
	}
	testDB.store = store
	testDB.pool = store.Pool()

	code := m.Run()

	_ = store.Close()
	if testDB.container != nil {
		_ = testDB.container.Terminate(ctx)
	}

	os.Exit(code)
}

// resetDB truncates all data tables between tests to ensure isolation.
func resetDB(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	// Children before parents
	for _, table := range []string{"posts", "users"} {
		if _, err := testDB.pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("failed to reset table %s: %v", table, err)
		}
	}
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func seedUser(t *testing.T, email string, name *string) domain.User {
	t.Helper()
	u, err := testDB.store.CreateUser(context.Background(), domain.CreateUser{Email: email, Name: name})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func seedPost(t *testing.T, title, authorID string, published bool) domain.PostWithAuthor {
	t.Helper()
	p, err := testDB.store.CreatePost(context.Background(), domain.CreatePost{
		Title: title, AuthorID: authorID, Published: &published,
	})
	if err != nil {
		t.Fatalf("CreatePost(%s): %v", title, err)
	}
	return p
}

func TestUserCRUD(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	u := seedUser(t, "alice@example.com", strPtr("Alice"))
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatalf("incomplete user: %+v", u)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "alice@example.com" || got.Name == nil || *got.Name != "Alice" {
		t.Errorf("unexpected user: %+v", got.User)
	}
	if got.Posts == nil || len(got.Posts) != 0 {
		t.Errorf("expected empty non-nil posts slice, got %#v", got.Posts)
	}

	updated, err := s.UpdateUser(ctx, u.ID, domain.UpdateUser{
		Email: strPtr("alice@corp.example"),
		Name:  domain.Null[string](),
	})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Email != "alice@corp.example" || updated.Name != nil {
		t.Errorf("unexpected update: %+v", updated)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetUser(ctx, u.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestConstraints(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	u := seedUser(t, "alice@example.com", nil)

	if _, err := s.CreateUser(ctx, domain.CreateUser{Email: "alice@example.com"}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate email, got %v", err)
	}
	if _, err := s.CreatePost(ctx, domain.CreatePost{Title: "orphan", AuthorID: "nobody"}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict for unknown author, got %v", err)
	}

	seedPost(t, "keeper", u.ID, false)
	if err := s.DeleteUser(ctx, u.ID); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict deleting author with posts, got %v", err)
	}
}

func TestNotFound(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store
	id := "00000000-0000-0000-0000-000000000099"

	if _, err := s.GetUser(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetUser: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateUser(ctx, id, domain.UpdateUser{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateUser: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteUser(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteUser: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetPost(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPost: expected ErrNotFound, got %v", err)
	}
	if err := s.DeletePost(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeletePost: expected ErrNotFound, got %v", err)
	}
	if _, err := s.SetPostPublished(ctx, id, true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetPostPublished: expected ErrNotFound, got %v", err)
	}
}

func TestPostLifecycle(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	u := seedUser(t, "alice@example.com", strPtr("Alice"))
	p, err := s.CreatePost(ctx, domain.CreatePost{Title: "first", Content: strPtr("body"), AuthorID: u.ID})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p.Published || p.Author.Email != "alice@example.com" {
		t.Errorf("unexpected post: %+v", p)
	}

	updated, err := s.UpdatePost(ctx, p.ID, domain.UpdatePost{
		Title:   strPtr("second"),
		Content: domain.Null[string](),
	})
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if updated.Title != "second" || updated.Content != nil {
		t.Errorf("unexpected patched post: %+v", updated.Post)
	}

	published, err := s.SetPostPublished(ctx, p.ID, true)
	if err != nil {
		t.Fatalf("SetPostPublished: %v", err)
	}
	if !published.Published {
		t.Error("post should be published")
	}
	// Idempotent.
	if _, err := s.SetPostPublished(ctx, p.ID, true); err != nil {
		t.Errorf("re-publish should succeed: %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if len(got.Posts) != 1 || got.Posts[0].Title != "second" || !got.Posts[0].Published {
		t.Errorf("unexpected post summaries: %+v", got.Posts)
	}

	if err := s.DeletePost(ctx, p.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
}

func TestPredicateRendering(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	alice := seedUser(t, "alice@example.com", strPtr("Alice"))
	bob := seedUser(t, "bob@example.com", nil)
	seedPost(t, "live", alice.ID, true)
	seedPost(t, "wip", alice.ID, false)

	// startsWith renders through LIKE, which is case sensitive in postgres.
	users, err := s.QueryUsers(ctx, query.Options{
		Predicate: query.Predicate{Conds: []query.Condition{
			{Field: query.FieldEmail, Op: query.OpStartsWith, Value: "alice"},
		}},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("QueryUsers startsWith: %v", err)
	}
	if len(users) != 1 || users[0].ID != alice.ID {
		t.Errorf("unexpected startsWith result: %+v", users)
	}

	// isNull.
	users, err = s.QueryUsers(ctx, query.Options{
		Predicate: query.Predicate{Conds: []query.Condition{
			{Field: query.FieldName, Op: query.OpIsNull},
		}},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("QueryUsers isNull: %v", err)
	}
	if len(users) != 1 || users[0].ID != bob.ID {
		t.Errorf("unexpected isNull result: %+v", users)
	}

	// EXISTS subquery for posts.some with an inner condition.
	users, err = s.QueryUsers(ctx, query.Options{
		Predicate: query.Predicate{Relations: []query.RelationCondition{
			{Relation: query.RelationPosts, Exists: true, Where: []query.Condition{
				{Field: query.FieldPublished, Op: query.OpEquals, Value: true},
			}},
		}},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("QueryUsers relation: %v", err)
	}
	if len(users) != 1 || users[0].ID != alice.ID {
		t.Errorf("unexpected relation result: %+v", users)
	}

	// NOT EXISTS for posts.none.
	users, err = s.QueryUsers(ctx, query.Options{
		Predicate: query.Predicate{Relations: []query.RelationCondition{
			{Relation: query.RelationPosts, Exists: false},
		}},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("QueryUsers none: %v", err)
	}
	if len(users) != 1 || users[0].ID != bob.ID {
		t.Errorf("unexpected none result: %+v", users)
	}

	// Author relation from the posts side.
	posts, err := s.QueryPosts(ctx, query.Options{
		Predicate: query.Predicate{
			Conds: []query.Condition{
				{Field: query.FieldPublished, Op: query.OpEquals, Value: true},
			},
			Relations: []query.RelationCondition{
				{Relation: query.RelationAuthor, Exists: true, Where: []query.Condition{
					{Field: query.FieldEmail, Op: query.OpEquals, Value: "alice@example.com"},
				}},
			},
		},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("QueryPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "live" {
		t.Errorf("unexpected posts result: %+v", posts)
	}

	// Counts ignore bounds.
	n, err := s.CountPosts(ctx, query.Predicate{})
	if err != nil {
		t.Fatalf("CountPosts: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 posts, got %d", n)
	}
}

func TestOrderingAndPaging(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	seedUser(t, "c@example.com", strPtr("Carol"))
	seedUser(t, "a@example.com", nil)
	seedUser(t, "b@example.com", strPtr("Bob"))

	users, err := s.QueryUsers(ctx, query.Options{OrderBy: query.FieldEmail, Limit: 2})
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	if len(users) != 2 || users[0].Email != "a@example.com" || users[1].Email != "b@example.com" {
		t.Errorf("unexpected first page: %+v", users)
	}

	users, err = s.QueryUsers(ctx, query.Options{OrderBy: query.FieldEmail, OrderDesc: true, Limit: 10, Offset: 1})
	if err != nil {
		t.Fatalf("QueryUsers desc: %v", err)
	}
	if len(users) != 2 || users[0].Email != "b@example.com" {
		t.Errorf("unexpected desc page: %+v", users)
	}

	// Nulls sort first ascending, matching the memory store.
	users, err = s.QueryUsers(ctx, query.Options{OrderBy: query.FieldName, Limit: 10})
	if err != nil {
		t.Fatalf("QueryUsers by name: %v", err)
	}
	if len(users) != 3 || users[0].Name != nil {
		t.Errorf("expected null name first, got %+v", users)
	}
}

func TestConcurrentCreates(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	s := testDB.store

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			_, err := s.CreateUser(ctx, domain.CreateUser{Email: fmt.Sprintf("u%d@example.com", idx)})
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent create %d failed: %v", i, err)
		}
	}

	total, err := s.CountUsers(ctx, query.Predicate{})
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if total != n {
		t.Errorf("expected %d users, got %d", n, total)
	}
}

func TestMigrationStatus(t *testing.T) {
	status, err := Status(testDB.connStr)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !strings.Contains(status, "schema_version=") {
		t.Errorf("expected status to contain 'schema_version=', got: %s", status)
	}
}

func TestStoreClose(t *testing.T) {
	store, err := New(testDB.connStr)
	if err != nil {
		t.Fatalf("New store failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
