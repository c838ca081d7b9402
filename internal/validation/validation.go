// Package validation provides input validation for microblog API requests.
// Requests are validated here before anything reaches the query compiler or
// the store, so those layers never see malformed shapes.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"microblog/internal/domain"
)

// Validation error types for specific error handling.
var (
	ErrEmptyValue       = errors.New("value cannot be empty")
	ErrTooLong          = errors.New("value exceeds maximum length")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrConflictingTerms = errors.New("conflicting filter terms")
)

// Constraints for validation.
const (
	MaxTitleLength = 200
	MaxNameLength  = 100
	MaxEmailLength = 254
)

// emailPattern is a pragmatic email shape check: one @, no spaces, a dot in
// the domain part. Full RFC 5322 parsing is deliberately out of scope.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// FieldError reports which request field failed and why.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field, reason string, err error) error {
	return &FieldError{Field: field, Reason: reason, Err: err}
}

// Email validates an email address shape.
func Email(field, v string) error {
	if v == "" {
		return fieldErr(field, "email is required", ErrEmptyValue)
	}
	if len(v) > MaxEmailLength {
		return fieldErr(field, fmt.Sprintf("email exceeds %d characters", MaxEmailLength), ErrTooLong)
	}
	if !emailPattern.MatchString(v) {
		return fieldErr(field, fmt.Sprintf("%q is not a valid email address", v), ErrInvalidFormat)
	}
	return nil
}

// PersonName validates an optional display name (1-100 characters when set).
func PersonName(field, v string) error {
	if v == "" {
		return fieldErr(field, "name cannot be empty", ErrEmptyValue)
	}
	if utf8.RuneCountInString(v) > MaxNameLength {
		return fieldErr(field, fmt.Sprintf("name exceeds %d characters", MaxNameLength), ErrTooLong)
	}
	return nil
}

// Title validates a post title (1-200 characters).
func Title(field, v string) error {
	if v == "" {
		return fieldErr(field, "title is required", ErrEmptyValue)
	}
	if utf8.RuneCountInString(v) > MaxTitleLength {
		return fieldErr(field, fmt.Sprintf("title exceeds %d characters", MaxTitleLength), ErrTooLong)
	}
	return nil
}

// CreateUser validates the create-user input.
func CreateUser(in domain.CreateUser) error {
	if err := Email("email", in.Email); err != nil {
		return err
	}
	if in.Name != nil {
		return PersonName("name", *in.Name)
	}
	return nil
}

// UpdateUser validates a partial user update.
func UpdateUser(in domain.UpdateUser) error {
	if in.Email != nil {
		if err := Email("email", *in.Email); err != nil {
			return err
		}
	}
	if in.Name.Valid {
		return PersonName("name", in.Name.Value)
	}
	return nil
}

// CreatePost validates the create-post input.
func CreatePost(in domain.CreatePost) error {
	if err := Title("title", in.Title); err != nil {
		return err
	}
	if in.AuthorID == "" {
		return fieldErr("authorId", "authorId is required", ErrEmptyValue)
	}
	return nil
}

// UpdatePost validates a partial post update.
func UpdatePost(in domain.UpdatePost) error {
	if in.Title != nil {
		return Title("title", *in.Title)
	}
	return nil
}

// SearchUsers validates the filter block of a user search. Sort and
// pagination are resolved (and rejected) by the query package.
func SearchUsers(req domain.SearchUsersRequest) error {
	f := req.Filter
	if f == nil {
		return nil
	}
	if f.Email != nil && f.Email.Equals != nil {
		if err := Email("filter.email.equals", *f.Email.Equals); err != nil {
			return err
		}
	}
	if f.Posts != nil && f.Posts.Some != nil && f.Posts.None != nil {
		return fieldErr("filter.posts", "some and none are mutually exclusive; provide one", ErrConflictingTerms)
	}
	return nil
}

// SearchPosts validates the filter block of a post search.
func SearchPosts(req domain.SearchPostsRequest) error {
	f := req.Filter
	if f == nil {
		return nil
	}
	if f.Author != nil && f.Author.Email != nil && f.Author.Email.Equals != nil {
		if err := Email("filter.author.email.equals", *f.Author.Email.Equals); err != nil {
			return err
		}
	}
	return nil
}
