package domain

import "time"

// User is a registered author. Name is nullable and serialized as an explicit
// null rather than omitted.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostSummary is the reduced post shape embedded in a user lookup.
type PostSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Published bool   `json:"published"`
}

// UserWithPosts is a user plus summaries of their posts, returned by get-by-id.
type UserWithPosts struct {
	User
	Posts []PostSummary `json:"posts"`
}

// Post is a blog post. Content is nullable; Published defaults to false.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	AuthorID  string    `json:"authorId"`
}

// AuthorSummary is the reduced user shape embedded in post responses.
type AuthorSummary struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

// PostWithAuthor is a post plus its author summary.
type PostWithAuthor struct {
	Post
	Author AuthorSummary `json:"author"`
}

// CreateUser is the input for creating a user.
type CreateUser struct {
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
}

// UpdateUser is a partial update. Name uses Optional so a client can clear it
// with an explicit null while leaving it untouched when absent.
type UpdateUser struct {
	Email *string          `json:"email,omitempty"`
	Name  Optional[string] `json:"name"`
}

// CreatePost is the input for creating a post. AuthorID must reference an
// existing user.
type CreatePost struct {
	Title     string  `json:"title"`
	Content   *string `json:"content,omitempty"`
	Published *bool   `json:"published,omitempty"`
	AuthorID  string  `json:"authorId"`
}

// UpdatePost is a partial update for a post.
type UpdatePost struct {
	Title     *string          `json:"title,omitempty"`
	Content   Optional[string] `json:"content"`
	Published *bool            `json:"published,omitempty"`
}
