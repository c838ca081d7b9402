package api

import (
	"net/http"
	"strings"

	"microblog/internal/domain"
	"microblog/internal/query"
	"microblog/internal/validation"
)

// handlePosts handles /api/v1/posts (list, create).
func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listPosts(w, r)
	case http.MethodPost:
		s.createPost(w, r)
	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodPost}, ", "))
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

// handlePostsSubroutes handles /api/v1/posts/search, /api/v1/posts/{id},
// and /api/v1/posts/{id}/publish|unpublish.
func (s *Server) handlePostsSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/posts/")
	if rest == "search" {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}
		s.searchPosts(w, r)
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.getPost(w, r, id)
		case http.MethodPatch:
			s.updatePost(w, r, id)
		case http.MethodDelete:
			s.deletePost(w, r, id)
		default:
			w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodPatch, http.MethodDelete}, ", "))
			s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		}
	case "publish", "unpublish":
		if r.Method != http.MethodPatch {
			w.Header().Set("Allow", http.MethodPatch)
			s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}
		s.setPublished(w, r, id, action == "publish")
	default:
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
	}
}

// listPosts handles GET /api/v1/posts?published=true, the simple unpaginated
// listing used by the web UI.
func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	var pred query.Predicate
	if r.URL.Query().Get("published") == "true" {
		pred.Conds = append(pred.Conds, query.Condition{Field: query.FieldPublished, Op: query.OpEquals, Value: true})
	}
	posts, err := s.store.QueryPosts(r.Context(), query.Options{
		Predicate: pred,
		OrderBy:   query.FieldCreatedAt,
		OrderDesc: true,
	})
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	if posts == nil {
		posts = []domain.PostWithAuthor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": posts, "total": len(posts)})
}

// searchPosts handles POST /api/v1/posts/search.
func (s *Server) searchPosts(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchPostsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := validation.SearchPosts(req); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, err.Error(), "")
		return
	}
	page, err := s.search.Posts(r.Context(), req)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.store.GetPost(r.Context(), id)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var in domain.CreatePost
	if !s.decodeBody(w, r, &in) {
		return
	}
	if err := validation.CreatePost(in); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, err.Error(), "")
		return
	}
	p, err := s.store.CreatePost(r.Context(), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "post created", "post_id", p.ID, "author_id", p.AuthorID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request, id string) {
	var in domain.UpdatePost
	if !s.decodeBody(w, r, &in) {
		return
	}
	if err := validation.UpdatePost(in); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, err.Error(), "")
		return
	}
	p, err := s.store.UpdatePost(r.Context(), id, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.store.DeletePost(r.Context(), id); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "post deleted", "post_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setPublished(w http.ResponseWriter, r *http.Request, id string, published bool) {
	p, err := s.store.SetPostPublished(r.Context(), id, published)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "post publish state changed", "post_id", id, "published", published)
	writeJSON(w, http.StatusOK, p)
}
