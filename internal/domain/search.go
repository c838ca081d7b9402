package domain

import "time"

// StringFilter narrows a string field. All present sub-conditions must hold.
type StringFilter struct {
	Equals     *string `json:"equals,omitempty"`
	Contains   *string `json:"contains,omitempty"`
	StartsWith *string `json:"startsWith,omitempty"`
	EndsWith   *string `json:"endsWith,omitempty"`
}

// Empty reports whether no sub-condition is set.
func (f *StringFilter) Empty() bool {
	return f == nil || (f.Equals == nil && f.Contains == nil && f.StartsWith == nil && f.EndsWith == nil)
}

// NullableStringFilter narrows a nullable string field. When IsNull is set it
// takes precedence and the other sub-conditions are skipped.
type NullableStringFilter struct {
	Equals     *string `json:"equals,omitempty"`
	Contains   *string `json:"contains,omitempty"`
	StartsWith *string `json:"startsWith,omitempty"`
	EndsWith   *string `json:"endsWith,omitempty"`
	IsNull     *bool   `json:"isNull,omitempty"`
}

// DateFilter narrows a timestamp field to a range. Present bounds are ANDed.
type DateFilter struct {
	GTE *time.Time `json:"gte,omitempty"`
	LTE *time.Time `json:"lte,omitempty"`
	GT  *time.Time `json:"gt,omitempty"`
	LT  *time.Time `json:"lt,omitempty"`
}

// PostsRelationCondition is the inner condition of a posts existence filter.
type PostsRelationCondition struct {
	Published *bool `json:"published,omitempty"`
}

// PostsRelationFilter filters users by the existence (Some) or absence (None)
// of related posts matching the inner condition. Setting both is rejected at
// the validation boundary.
type PostsRelationFilter struct {
	Some *PostsRelationCondition `json:"some,omitempty"`
	None *PostsRelationCondition `json:"none,omitempty"`
}

// UserFilter is the filter block of a user search.
type UserFilter struct {
	ID        *string               `json:"id,omitempty"`
	Email     *StringFilter         `json:"email,omitempty"`
	Name      *NullableStringFilter `json:"name,omitempty"`
	CreatedAt *DateFilter           `json:"createdAt,omitempty"`
	Posts     *PostsRelationFilter  `json:"posts,omitempty"`
}

// AuthorFilter filters posts by fields of the related author, one level deep.
type AuthorFilter struct {
	ID    *string               `json:"id,omitempty"`
	Email *StringFilter         `json:"email,omitempty"`
	Name  *NullableStringFilter `json:"name,omitempty"`
}

// PostFilter is the filter block of a post search.
type PostFilter struct {
	ID        *string               `json:"id,omitempty"`
	Title     *StringFilter         `json:"title,omitempty"`
	Content   *NullableStringFilter `json:"content,omitempty"`
	Published *bool                 `json:"published,omitempty"`
	CreatedAt *DateFilter           `json:"createdAt,omitempty"`
	Author    *AuthorFilter         `json:"author,omitempty"`
}

// SortSpec selects the sort field and direction. Field must come from the
// entity's allow-list; both default per entity when absent.
type SortSpec struct {
	Field *string `json:"field,omitempty"`
	Order *string `json:"order,omitempty"`
}

// Pagination selects a 1-based page and a page size in [1,100].
type Pagination struct {
	Page  *int `json:"page,omitempty"`
	Limit *int `json:"limit,omitempty"`
}

// SearchUsersRequest is the body of POST /api/v1/users/search.
type SearchUsersRequest struct {
	Filter     *UserFilter `json:"filter,omitempty"`
	Sort       *SortSpec   `json:"sort,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// SearchPostsRequest is the body of POST /api/v1/posts/search.
type SearchPostsRequest struct {
	Filter     *PostFilter `json:"filter,omitempty"`
	Sort       *SortSpec   `json:"sort,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Page is the paginated response envelope. Total counts every record matching
// the filter regardless of page/limit; TotalPages is derived, never stored.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}
