//go:build sqlite

package sqlite

import (
	"fmt"
	"strings"
	"time"

	"microblog/internal/query"
	"microblog/internal/storage"
)

// columns maps predicate field names to their column names. Both tables share
// the mapping since field names never collide across entities.
var columns = map[string]string{
	query.FieldID:        "id",
	query.FieldEmail:     "email",
	query.FieldName:      "name",
	query.FieldTitle:     "title",
	query.FieldContent:   "content",
	query.FieldPublished: "published",
	query.FieldCreatedAt: "created_at",
	query.FieldUpdatedAt: "updated_at",
	query.FieldAuthorID:  "author_id",
}

// whereClause renders a predicate into a SQL WHERE fragment (without the
// leading WHERE) plus its bind arguments. table is the outer table the
// predicate targets; relation conditions become correlated EXISTS subqueries.
// An empty predicate renders to the empty string.
func whereClause(table string, p query.Predicate) (string, []any, error) {
	var parts []string
	var args []any

	for _, c := range p.Conds {
		frag, condArgs, err := renderCondition(table, c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, frag)
		args = append(args, condArgs...)
	}

	for _, rc := range p.Relations {
		frag, relArgs, err := renderRelation(table, rc)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, frag)
		args = append(args, relArgs...)
	}

	return strings.Join(parts, " AND "), args, nil
}

func renderCondition(table string, c query.Condition) (string, []any, error) {
	col, ok := columns[c.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q: %w", c.Field, storage.ErrValidation)
	}
	qualified := table + "." + col

	switch c.Op {
	case query.OpEquals:
		return qualified + " = ?", []any{bindValue(c.Value)}, nil
	case query.OpContains:
		return qualified + ` LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(c.Value) + "%"}, nil
	case query.OpStartsWith:
		return qualified + ` LIKE ? ESCAPE '\'`, []any{escapeLike(c.Value) + "%"}, nil
	case query.OpEndsWith:
		return qualified + ` LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(c.Value)}, nil
	case query.OpGT:
		return qualified + " > ?", []any{bindValue(c.Value)}, nil
	case query.OpGTE:
		return qualified + " >= ?", []any{bindValue(c.Value)}, nil
	case query.OpLT:
		return qualified + " < ?", []any{bindValue(c.Value)}, nil
	case query.OpLTE:
		return qualified + " <= ?", []any{bindValue(c.Value)}, nil
	case query.OpIsNull:
		return qualified + " IS NULL", nil, nil
	case query.OpNotNull:
		return qualified + " IS NOT NULL", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %s: %w", c.Op, storage.ErrValidation)
	}
}

func renderRelation(table string, rc query.RelationCondition) (string, []any, error) {
	var sub string
	var subTable string
	switch {
	case table == "users" && rc.Relation == query.RelationPosts:
		subTable = "posts"
		sub = "SELECT 1 FROM posts WHERE posts.author_id = users.id"
	case table == "posts" && rc.Relation == query.RelationAuthor:
		subTable = "users"
		sub = "SELECT 1 FROM users WHERE users.id = posts.author_id"
	default:
		return "", nil, fmt.Errorf("unknown relation %q on %s: %w", rc.Relation, table, storage.ErrValidation)
	}

	var args []any
	for _, c := range rc.Where {
		frag, condArgs, err := renderCondition(subTable, c)
		if err != nil {
			return "", nil, err
		}
		sub += " AND " + frag
		args = append(args, condArgs...)
	}

	if rc.Exists {
		return "EXISTS (" + sub + ")", args, nil
	}
	return "NOT EXISTS (" + sub + ")", args, nil
}

// orderClause renders an ORDER BY fragment with an id tiebreak in the same
// direction, mirroring the memory store's deterministic ordering.
func orderClause(table, field string, desc bool) (string, error) {
	if field == "" {
		field = query.FieldCreatedAt
	}
	col, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("unknown sort field %q: %w", field, storage.ErrValidation)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s.%s %s, %s.id %s", table, col, dir, table, dir), nil
}

// bindValue converts predicate values to their column representation.
// Times are stored as RFC3339 UTC text so lexicographic comparison matches
// chronological order.
func bindValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return v
	}
}

// escapeLike escapes LIKE metacharacters in a user-supplied operand.
func escapeLike(v any) string {
	s, _ := v.(string)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
