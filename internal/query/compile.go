package query

import "microblog/internal/domain"

// Field names used by compiled predicates. Store renderers map these to their
// column names; the memory store maps them to struct accessors.
const (
	FieldID        = "id"
	FieldEmail     = "email"
	FieldName      = "name"
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldPublished = "published"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldAuthorID  = "authorId"

	RelationPosts  = "posts"
	RelationAuthor = "author"
)

// CompileUserFilter translates a user search filter into a predicate.
// A nil filter compiles to the empty predicate (match all).
func CompileUserFilter(f *domain.UserFilter) Predicate {
	var p Predicate
	if f == nil {
		return p
	}
	if f.ID != nil {
		p.Conds = append(p.Conds, Condition{Field: FieldID, Op: OpEquals, Value: *f.ID})
	}
	p.Conds = appendString(p.Conds, FieldEmail, f.Email)
	p.Conds = appendNullableString(p.Conds, FieldName, f.Name)
	p.Conds = appendDate(p.Conds, FieldCreatedAt, f.CreatedAt)
	if f.Posts != nil {
		if f.Posts.Some != nil {
			p.Relations = append(p.Relations, RelationCondition{
				Relation: RelationPosts,
				Exists:   true,
				Where:    relationWhere(f.Posts.Some),
			})
		}
		if f.Posts.None != nil {
			p.Relations = append(p.Relations, RelationCondition{
				Relation: RelationPosts,
				Exists:   false,
				Where:    relationWhere(f.Posts.None),
			})
		}
	}
	return p
}

// CompilePostFilter translates a post search filter into a predicate.
func CompilePostFilter(f *domain.PostFilter) Predicate {
	var p Predicate
	if f == nil {
		return p
	}
	if f.ID != nil {
		p.Conds = append(p.Conds, Condition{Field: FieldID, Op: OpEquals, Value: *f.ID})
	}
	p.Conds = appendString(p.Conds, FieldTitle, f.Title)
	p.Conds = appendNullableString(p.Conds, FieldContent, f.Content)
	if f.Published != nil {
		p.Conds = append(p.Conds, Condition{Field: FieldPublished, Op: OpEquals, Value: *f.Published})
	}
	p.Conds = appendDate(p.Conds, FieldCreatedAt, f.CreatedAt)
	if f.Author != nil {
		p.Relations = append(p.Relations, RelationCondition{
			Relation: RelationAuthor,
			Exists:   true,
			Where:    authorWhere(f.Author),
		})
	}
	return p
}

func relationWhere(c *domain.PostsRelationCondition) []Condition {
	var where []Condition
	if c.Published != nil {
		where = append(where, Condition{Field: FieldPublished, Op: OpEquals, Value: *c.Published})
	}
	return where
}

func authorWhere(f *domain.AuthorFilter) []Condition {
	var where []Condition
	if f.ID != nil {
		where = append(where, Condition{Field: FieldID, Op: OpEquals, Value: *f.ID})
	}
	where = appendString(where, FieldEmail, f.Email)
	where = appendNullableString(where, FieldName, f.Name)
	return where
}

// appendString compiles a StringFilter into a conjunction of whichever
// sub-conditions are present.
func appendString(conds []Condition, field string, f *domain.StringFilter) []Condition {
	if f == nil {
		return conds
	}
	if f.Equals != nil {
		conds = append(conds, Condition{Field: field, Op: OpEquals, Value: *f.Equals})
	}
	if f.Contains != nil {
		conds = append(conds, Condition{Field: field, Op: OpContains, Value: *f.Contains})
	}
	if f.StartsWith != nil {
		conds = append(conds, Condition{Field: field, Op: OpStartsWith, Value: *f.StartsWith})
	}
	if f.EndsWith != nil {
		conds = append(conds, Condition{Field: field, Op: OpEndsWith, Value: *f.EndsWith})
	}
	return conds
}

// appendNullableString compiles a NullableStringFilter. A present IsNull is
// the only condition applied to the field; the other sub-conditions are
// skipped by contract.
func appendNullableString(conds []Condition, field string, f *domain.NullableStringFilter) []Condition {
	if f == nil {
		return conds
	}
	if f.IsNull != nil {
		op := OpNotNull
		if *f.IsNull {
			op = OpIsNull
		}
		return append(conds, Condition{Field: field, Op: op})
	}
	return appendString(conds, field, &domain.StringFilter{
		Equals:     f.Equals,
		Contains:   f.Contains,
		StartsWith: f.StartsWith,
		EndsWith:   f.EndsWith,
	})
}

// appendDate compiles a DateFilter into a conjunction of the present bounds.
func appendDate(conds []Condition, field string, f *domain.DateFilter) []Condition {
	if f == nil {
		return conds
	}
	if f.GTE != nil {
		conds = append(conds, Condition{Field: field, Op: OpGTE, Value: *f.GTE})
	}
	if f.LTE != nil {
		conds = append(conds, Condition{Field: field, Op: OpLTE, Value: *f.LTE})
	}
	if f.GT != nil {
		conds = append(conds, Condition{Field: field, Op: OpGT, Value: *f.GT})
	}
	if f.LT != nil {
		conds = append(conds, Condition{Field: field, Op: OpLT, Value: *f.LT})
	}
	return conds
}
