package storage

import (
	"fmt"
	"strings"
	"time"

	"microblog/internal/domain"
	"microblog/internal/query"
)

// Predicate evaluation for the memory store. Each entity exposes its filterable
// fields through a small accessor; conditions are evaluated one by one since a
// predicate is an implicit conjunction. String matching is case-sensitive to
// match the SQL backends.

// fieldValue is the value of one entity field: a concrete value, or null.
type fieldValue struct {
	val  any
	null bool
}

func (m *MemoryStore) matchUser(u domain.User, p query.Predicate) (bool, error) {
	for _, c := range p.Conds {
		fv, err := userField(u, c.Field)
		if err != nil {
			return false, err
		}
		ok, err := evalCondition(fv, c)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, rel := range p.Relations {
		if rel.Relation != query.RelationPosts {
			return false, fmt.Errorf("unknown user relation %q: %w", rel.Relation, ErrValidation)
		}
		any, err := m.anyPostMatchesLocked(u.ID, rel.Where)
		if err != nil {
			return false, err
		}
		if any != rel.Exists {
			return false, nil
		}
	}
	return true, nil
}

func (m *MemoryStore) matchPost(p domain.Post, pred query.Predicate) (bool, error) {
	for _, c := range pred.Conds {
		fv, err := postField(p, c.Field)
		if err != nil {
			return false, err
		}
		ok, err := evalCondition(fv, c)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, rel := range pred.Relations {
		if rel.Relation != query.RelationAuthor {
			return false, fmt.Errorf("unknown post relation %q: %w", rel.Relation, ErrValidation)
		}
		author, ok := m.users[p.AuthorID]
		if !ok {
			return false, nil
		}
		matched := true
		for _, c := range rel.Where {
			fv, err := userField(author, c.Field)
			if err != nil {
				return false, err
			}
			ok, err := evalCondition(fv, c)
			if err != nil {
				return false, err
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched != rel.Exists {
			return false, nil
		}
	}
	return true, nil
}

// anyPostMatchesLocked reports whether the author has at least one post
// matching all inner conditions. Callers must hold at least a read lock.
func (m *MemoryStore) anyPostMatchesLocked(authorID string, where []query.Condition) (bool, error) {
	for _, p := range m.posts {
		if p.AuthorID != authorID {
			continue
		}
		matched := true
		for _, c := range where {
			fv, err := postField(p, c.Field)
			if err != nil {
				return false, err
			}
			ok, err := evalCondition(fv, c)
			if err != nil {
				return false, err
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func userField(u domain.User, field string) (fieldValue, error) {
	switch field {
	case query.FieldID:
		return fieldValue{val: u.ID}, nil
	case query.FieldEmail:
		return fieldValue{val: u.Email}, nil
	case query.FieldName:
		if u.Name == nil {
			return fieldValue{null: true}, nil
		}
		return fieldValue{val: *u.Name}, nil
	case query.FieldCreatedAt:
		return fieldValue{val: u.CreatedAt}, nil
	case query.FieldUpdatedAt:
		return fieldValue{val: u.UpdatedAt}, nil
	default:
		return fieldValue{}, fmt.Errorf("unknown user field %q: %w", field, ErrValidation)
	}
}

func postField(p domain.Post, field string) (fieldValue, error) {
	switch field {
	case query.FieldID:
		return fieldValue{val: p.ID}, nil
	case query.FieldTitle:
		return fieldValue{val: p.Title}, nil
	case query.FieldContent:
		if p.Content == nil {
			return fieldValue{null: true}, nil
		}
		return fieldValue{val: *p.Content}, nil
	case query.FieldPublished:
		return fieldValue{val: p.Published}, nil
	case query.FieldAuthorID:
		return fieldValue{val: p.AuthorID}, nil
	case query.FieldCreatedAt:
		return fieldValue{val: p.CreatedAt}, nil
	case query.FieldUpdatedAt:
		return fieldValue{val: p.UpdatedAt}, nil
	default:
		return fieldValue{}, fmt.Errorf("unknown post field %q: %w", field, ErrValidation)
	}
}

func evalCondition(fv fieldValue, c query.Condition) (bool, error) {
	switch c.Op {
	case query.OpIsNull:
		return fv.null, nil
	case query.OpNotNull:
		return !fv.null, nil
	}
	// A null field never matches a value comparison.
	if fv.null {
		return false, nil
	}
	switch v := fv.val.(type) {
	case string:
		want, ok := c.Value.(string)
		if !ok {
			return false, fmt.Errorf("field %s: expected string value for %s: %w", c.Field, c.Op, ErrValidation)
		}
		return evalString(v, c.Op, want, c.Field)
	case bool:
		want, ok := c.Value.(bool)
		if !ok || c.Op != query.OpEquals {
			return false, fmt.Errorf("field %s: boolean fields support only equality: %w", c.Field, ErrValidation)
		}
		return v == want, nil
	case time.Time:
		want, ok := c.Value.(time.Time)
		if !ok {
			return false, fmt.Errorf("field %s: expected time value for %s: %w", c.Field, c.Op, ErrValidation)
		}
		return evalTime(v, c.Op, want, c.Field)
	default:
		return false, fmt.Errorf("field %s: unsupported field type %T: %w", c.Field, fv.val, ErrValidation)
	}
}

func evalString(have string, op query.Op, want, field string) (bool, error) {
	switch op {
	case query.OpEquals:
		return have == want, nil
	case query.OpContains:
		return strings.Contains(have, want), nil
	case query.OpStartsWith:
		return strings.HasPrefix(have, want), nil
	case query.OpEndsWith:
		return strings.HasSuffix(have, want), nil
	default:
		return false, fmt.Errorf("field %s: operator %s not valid for strings: %w", field, op, ErrValidation)
	}
}

func evalTime(have time.Time, op query.Op, want time.Time, field string) (bool, error) {
	switch op {
	case query.OpEquals:
		return have.Equal(want), nil
	case query.OpGT:
		return have.After(want), nil
	case query.OpGTE:
		return !have.Before(want), nil
	case query.OpLT:
		return have.Before(want), nil
	case query.OpLTE:
		return !have.After(want), nil
	default:
		return false, fmt.Errorf("field %s: operator %s not valid for timestamps: %w", field, op, ErrValidation)
	}
}
