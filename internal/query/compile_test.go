package query

import (
	"testing"
	"time"

	"microblog/internal/domain"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestCompileUserFilterEmpty(t *testing.T) {
	if p := CompileUserFilter(nil); !p.IsEmpty() {
		t.Errorf("nil filter should compile to empty predicate, got %+v", p)
	}
	if p := CompileUserFilter(&domain.UserFilter{}); !p.IsEmpty() {
		t.Errorf("zero filter should compile to empty predicate, got %+v", p)
	}
}

func TestCompileUserFilterConjunction(t *testing.T) {
	f := &domain.UserFilter{
		ID: strPtr("u1"),
		Email: &domain.StringFilter{
			Contains: strPtr("@example.com"),
			EndsWith: strPtr(".com"),
		},
	}
	p := CompileUserFilter(f)
	if len(p.Conds) != 3 {
		t.Fatalf("expected 3 conditions, got %d: %+v", len(p.Conds), p.Conds)
	}
	if p.Conds[0].Field != FieldID || p.Conds[0].Op != OpEquals || p.Conds[0].Value != "u1" {
		t.Errorf("unexpected id condition: %+v", p.Conds[0])
	}
	if p.Conds[1].Op != OpContains || p.Conds[2].Op != OpEndsWith {
		t.Errorf("unexpected email conditions: %+v", p.Conds[1:])
	}
}

func TestCompileNullableIsNullPrecedence(t *testing.T) {
	// isNull wins over any other sub-condition on the same field.
	f := &domain.UserFilter{
		Name: &domain.NullableStringFilter{
			Contains: strPtr("alice"),
			IsNull:   boolPtr(true),
		},
	}
	p := CompileUserFilter(f)
	if len(p.Conds) != 1 {
		t.Fatalf("expected single condition, got %d: %+v", len(p.Conds), p.Conds)
	}
	if p.Conds[0].Op != OpIsNull {
		t.Errorf("expected isNull condition, got %s", p.Conds[0].Op)
	}

	f.Name.IsNull = boolPtr(false)
	p = CompileUserFilter(f)
	if len(p.Conds) != 1 || p.Conds[0].Op != OpNotNull {
		t.Errorf("expected single notNull condition, got %+v", p.Conds)
	}
}

func TestCompileDateRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	f := &domain.UserFilter{
		CreatedAt: &domain.DateFilter{GTE: &from, LT: &to},
	}
	p := CompileUserFilter(f)
	if len(p.Conds) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(p.Conds))
	}
	if p.Conds[0].Op != OpGTE || !p.Conds[0].Value.(time.Time).Equal(from) {
		t.Errorf("unexpected gte condition: %+v", p.Conds[0])
	}
	if p.Conds[1].Op != OpLT || !p.Conds[1].Value.(time.Time).Equal(to) {
		t.Errorf("unexpected lt condition: %+v", p.Conds[1])
	}
}

func TestCompilePostsRelation(t *testing.T) {
	f := &domain.UserFilter{
		Posts: &domain.PostsRelationFilter{
			Some: &domain.PostsRelationCondition{Published: boolPtr(true)},
		},
	}
	p := CompileUserFilter(f)
	if len(p.Relations) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(p.Relations))
	}
	rc := p.Relations[0]
	if rc.Relation != RelationPosts || !rc.Exists {
		t.Errorf("unexpected relation condition: %+v", rc)
	}
	if len(rc.Where) != 1 || rc.Where[0].Field != FieldPublished || rc.Where[0].Value != true {
		t.Errorf("unexpected inner condition: %+v", rc.Where)
	}

	// none compiles to Exists=false; an empty inner condition matches any post.
	f.Posts = &domain.PostsRelationFilter{None: &domain.PostsRelationCondition{}}
	p = CompileUserFilter(f)
	if len(p.Relations) != 1 || p.Relations[0].Exists || len(p.Relations[0].Where) != 0 {
		t.Errorf("unexpected none relation: %+v", p.Relations)
	}
}

func TestCompilePostFilterAuthor(t *testing.T) {
	f := &domain.PostFilter{
		Published: boolPtr(false),
		Author: &domain.AuthorFilter{
			Email: &domain.StringFilter{Equals: strPtr("alice@example.com")},
			Name:  &domain.NullableStringFilter{IsNull: boolPtr(true)},
		},
	}
	p := CompilePostFilter(f)
	if len(p.Conds) != 1 || p.Conds[0].Field != FieldPublished {
		t.Fatalf("unexpected conditions: %+v", p.Conds)
	}
	if len(p.Relations) != 1 {
		t.Fatalf("expected author relation, got %+v", p.Relations)
	}
	rc := p.Relations[0]
	if rc.Relation != RelationAuthor || !rc.Exists {
		t.Errorf("unexpected relation: %+v", rc)
	}
	if len(rc.Where) != 2 {
		t.Fatalf("expected 2 inner conditions, got %+v", rc.Where)
	}
	if rc.Where[1].Field != FieldName || rc.Where[1].Op != OpIsNull {
		t.Errorf("isNull should carry into relation conditions: %+v", rc.Where[1])
	}
}
