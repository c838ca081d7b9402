//go:build postgres

package postgres

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"microblog/internal/query"
	"microblog/internal/storage"
)

// columns maps predicate field names to their column names.
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

// argList collects bind arguments and hands out $n placeholders.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return "$" + strconv.Itoa(len(a.args))
}

// whereClause renders a predicate into a SQL WHERE fragment (without the
// leading WHERE) plus its bind arguments. Relation conditions become
// correlated EXISTS subqueries. An empty predicate renders to "".
func whereClause(table string, p query.Predicate, a *argList) (string, error) {
	var parts []string

	for _, c := range p.Conds {
		frag, err := renderCondition(table, c, a)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}

	for _, rc := range p.Relations {
		frag, err := renderRelation(table, rc, a)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}

	return strings.Join(parts, " AND "), nil
}

func renderCondition(table string, c query.Condition, a *argList) (string, error) {
	col, ok := columns[c.Field]
	if !ok {
		return "", fmt.Errorf("unknown field %q: %w", c.Field, storage.ErrValidation)
	}
	qualified := table + "." + col

	switch c.Op {
	case query.OpEquals:
		return qualified + " = " + a.add(bindValue(c.Value)), nil
	case query.OpContains:
		return qualified + " LIKE " + a.add("%"+escapeLike(c.Value)+"%") + ` ESCAPE '\'`, nil
	case query.OpStartsWith:
		return qualified + " LIKE " + a.add(escapeLike(c.Value)+"%") + ` ESCAPE '\'`, nil
	case query.OpEndsWith:
		return qualified + " LIKE " + a.add("%"+escapeLike(c.Value)) + ` ESCAPE '\'`, nil
	case query.OpGT:
		return qualified + " > " + a.add(bindValue(c.Value)), nil
	case query.OpGTE:
		return qualified + " >= " + a.add(bindValue(c.Value)), nil
	case query.OpLT:
		return qualified + " < " + a.add(bindValue(c.Value)), nil
	case query.OpLTE:
		return qualified + " <= " + a.add(bindValue(c.Value)), nil
	case query.OpIsNull:
		return qualified + " IS NULL", nil
	case query.OpNotNull:
		return qualified + " IS NOT NULL", nil
	default:
		return "", fmt.Errorf("unsupported operator %s: %w", c.Op, storage.ErrValidation)
	}
}

func renderRelation(table string, rc query.RelationCondition, a *argList) (string, error) {
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
		return "", fmt.Errorf("unknown relation %q on %s: %w", rc.Relation, table, storage.ErrValidation)
	}

	for _, c := range rc.Where {
		frag, err := renderCondition(subTable, c, a)
		if err != nil {
			return "", err
		}
		sub += " AND " + frag
	}

	if rc.Exists {
		return "EXISTS (" + sub + ")", nil
	}
	return "NOT EXISTS (" + sub + ")", nil
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
	nulls := "NULLS FIRST"
	if desc {
		dir = "DESC"
		nulls = "NULLS LAST"
	}
	return fmt.Sprintf("ORDER BY %s.%s %s %s, %s.id %s", table, col, dir, nulls, table, dir), nil
}

func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

// escapeLike escapes LIKE metacharacters in a user-supplied operand.
func escapeLike(v any) string {
	s, _ := v.(string)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
