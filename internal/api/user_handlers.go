package api

import (
	"net/http"
	"strings"

	"microblog/internal/domain"
	"microblog/internal/validation"
)

// handleUsers handles /api/v1/users (create).
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createUser(w, r)
	default:
		w.Header().Set("Allow", http.MethodPost)
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

// handleUsersSubroutes handles /api/v1/users/search and /api/v1/users/{id}.
func (s *Server) handleUsersSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	if rest == "" || strings.Contains(rest, "/") {
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
		return
	}
	if rest == "search" {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
			return
		}
		s.searchUsers(w, r)
		return
	}
	id := rest
	switch r.Method {
	case http.MethodGet:
		s.getUser(w, r, id)
	case http.MethodPatch:
		s.updateUser(w, r, id)
	case http.MethodDelete:
		s.deleteUser(w, r, id)
	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodPatch, http.MethodDelete}, ", "))
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

// searchUsers handles POST /api/v1/users/search.
func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchUsersRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := validation.SearchUsers(req); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, err.Error(), "")
		return
	}
	page, err := s.search.Users(r.Context(), req)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateUser
	if !s.decodeBody(w, r, &in) {
		return
	}
	if err := validation.CreateUser(in); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, err.Error(), "")
		return
	}
	u, err := s.store.CreateUser(r.Context(), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "user created", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	var in domain.UpdateUser
	if !s.decodeBody(w, r, &in) {
		return
	}
	if err := validation.UpdateUser(in); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, err.Error(), "")
		return
	}
	u, err := s.store.UpdateUser(r.Context(), id, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "user deleted", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}
