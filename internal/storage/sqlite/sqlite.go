//go:build sqlite

// Package sqlite implements the storage.Store interface on SQLite via the
// CGO-less modernc driver. Predicates compile to WHERE fragments in where.go;
// timestamps are stored as RFC3339 UTC text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"microblog/internal/domain"
	"microblog/internal/query"
	"microblog/internal/storage"
)

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// case_sensitive_like keeps LIKE matching byte-wise, consistent with the
	// memory store and the postgres backend.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON; PRAGMA case_sensitive_like=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) QueryUsers(ctx context.Context, opts query.Options) ([]domain.User, error) {
	where, args, err := whereClause("users", opts.Predicate)
	if err != nil {
		return nil, err
	}
	order, err := orderClause("users", opts.OrderBy, opts.OrderDesc)
	if err != nil {
		return nil, err
	}
	q := `SELECT users.id, users.email, users.name, users.created_at, users.updated_at FROM users`
	if where != "" {
		q += " WHERE " + where
	}
	q += " " + order
	q, args = applyBounds(q, args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context, p query.Predicate) (int64, error) {
	where, args, err := whereClause("users", p)
	if err != nil {
		return 0, err
	}
	q := `SELECT COUNT(1) FROM users`
	if where != "" {
		q += " WHERE " + where
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.UserWithPosts, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, email, name, created_at, updated_at FROM users WHERE id=?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserWithPosts{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
		}
		return domain.UserWithPosts{}, err
	}
	out := domain.UserWithPosts{User: u, Posts: []domain.PostSummary{}}

	rows, err := s.db.QueryContext(ctx, `SELECT id, title, published FROM posts WHERE author_id=? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return domain.UserWithPosts{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var ps domain.PostSummary
		var published int
		if err := rows.Scan(&ps.ID, &ps.Title, &published); err != nil {
			return domain.UserWithPosts{}, err
		}
		ps.Published = published != 0
		out.Posts = append(out.Posts, ps)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, in domain.CreateUser) (domain.User, error) {
	if in.Email == "" {
		return domain.User{}, fmt.Errorf("email required: %w", storage.ErrValidation)
	}
	now := time.Now().UTC().Truncate(time.Second)
	u := domain.User{ID: uuid.New().String(), Email: in.Email, Name: in.Name, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(id, email, name, created_at, updated_at) VALUES(?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, formatTime(now), formatTime(now))
	if err != nil {
		return domain.User{}, storage.WrapIfConflict(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, in domain.UpdateUser) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, email, name, created_at, updated_at FROM users WHERE id=?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
		}
		return domain.User{}, err
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Name.Set {
		u.Name = in.Name.Ptr()
	}
	u.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	_, err = s.db.ExecContext(ctx, `UPDATE users SET email=?, name=?, updated_at=? WHERE id=?`,
		u.Email, u.Name, formatTime(u.UpdatedAt), id)
	if err != nil {
		return domain.User{}, storage.WrapIfConflict(err)
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	var cnt int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM posts WHERE author_id=?`, id).Scan(&cnt); err != nil {
		return err
	}
	if cnt > 0 {
		return fmt.Errorf("user %s has %d posts: %w", id, cnt, storage.ErrConflict)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return storage.WrapIfConflict(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

const postColumns = `posts.id, posts.title, posts.content, posts.published, posts.created_at, posts.updated_at, posts.author_id, users.id, users.name, users.email`

func (s *Store) QueryPosts(ctx context.Context, opts query.Options) ([]domain.PostWithAuthor, error) {
	where, args, err := whereClause("posts", opts.Predicate)
	if err != nil {
		return nil, err
	}
	order, err := orderClause("posts", opts.OrderBy, opts.OrderDesc)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + postColumns + ` FROM posts JOIN users ON users.id = posts.author_id`
	if where != "" {
		q += " WHERE " + where
	}
	q += " " + order
	q, args = applyBounds(q, args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.PostWithAuthor{}
	for rows.Next() {
		p, err := scanPostWithAuthor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountPosts(ctx context.Context, p query.Predicate) (int64, error) {
	where, args, err := whereClause("posts", p)
	if err != nil {
		return 0, err
	}
	q := `SELECT COUNT(1) FROM posts`
	if where != "" {
		q += " WHERE " + where
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (domain.PostWithAuthor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts JOIN users ON users.id = posts.author_id WHERE posts.id=?`, id)
	p, err := scanPostWithAuthor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PostWithAuthor{}, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
		}
		return domain.PostWithAuthor{}, err
	}
	return p, nil
}

func (s *Store) CreatePost(ctx context.Context, in domain.CreatePost) (domain.PostWithAuthor, error) {
	if in.Title == "" || in.AuthorID == "" {
		return domain.PostWithAuthor{}, fmt.Errorf("title and authorId required: %w", storage.ErrValidation)
	}
	now := time.Now().UTC().Truncate(time.Second)
	published := 0
	if in.Published != nil && *in.Published {
		published = 1
	}
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts(id, title, content, published, created_at, updated_at, author_id) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		id, in.Title, in.Content, published, formatTime(now), formatTime(now), in.AuthorID)
	if err != nil {
		return domain.PostWithAuthor{}, storage.WrapIfConflict(err)
	}
	return s.GetPost(ctx, id)
}

func (s *Store) UpdatePost(ctx context.Context, id string, in domain.UpdatePost) (domain.PostWithAuthor, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return domain.PostWithAuthor{}, err
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
	published := 0
	if p.Published {
		published = 1
	}
	updatedAt := time.Now().UTC().Truncate(time.Second)
	_, err = s.db.ExecContext(ctx, `UPDATE posts SET title=?, content=?, published=?, updated_at=? WHERE id=?`,
		p.Title, p.Content, published, formatTime(updatedAt), id)
	if err != nil {
		return domain.PostWithAuthor{}, err
	}
	return s.GetPost(ctx, id)
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) SetPostPublished(ctx context.Context, id string, published bool) (domain.PostWithAuthor, error) {
	val := 0
	if published {
		val = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET published=?, updated_at=? WHERE id=?`,
		val, formatTime(time.Now().UTC().Truncate(time.Second)), id)
	if err != nil {
		return domain.PostWithAuthor{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.PostWithAuthor{}, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return s.GetPost(ctx, id)
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// applyBounds appends LIMIT/OFFSET clauses. SQLite treats LIMIT -1 as
// unbounded, which lets an offset apply without a limit.
func applyBounds(q string, args []any, limit, offset int) (string, []any) {
	switch {
	case limit > 0:
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	case offset > 0:
		q += " LIMIT -1 OFFSET ?"
		args = append(args, offset)
	}
	return q, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var name sql.NullString
	var created, updated string
	if err := row.Scan(&u.ID, &u.Email, &name, &created, &updated); err != nil {
		return domain.User{}, err
	}
	if name.Valid {
		u.Name = &name.String
	}
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return u, nil
}

func scanPostWithAuthor(row rowScanner) (domain.PostWithAuthor, error) {
	var p domain.PostWithAuthor
	var content, authorName sql.NullString
	var published int
	var created, updated string
	if err := row.Scan(&p.ID, &p.Title, &content, &published, &created, &updated, &p.AuthorID,
		&p.Author.ID, &authorName, &p.Author.Email); err != nil {
		return domain.PostWithAuthor{}, err
	}
	if content.Valid {
		p.Content = &content.String
	}
	if authorName.Valid {
		p.Author.Name = &authorName.String
	}
	p.Published = published != 0
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
