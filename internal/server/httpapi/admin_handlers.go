package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/and161185/doc-keeper/internal/convert"
)

type usersResponse struct {
	Users []convert.User `json:"users"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	us, err := s.accounts.ListUsers(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: convert.ToUsers(us)})
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	var req convert.UserUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.accounts.UpdateUser(r.Context(), name, req.Password, req.Projects, convert.FromPermissions(req.Permissions)); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.accounts.Get(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUser(u))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.DeleteUser(r.Context(), mux.Vars(r)["username"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type projectsResponse struct {
	Projects []string `json:"projects"`
}

func (s *Server) projects(w http.ResponseWriter, r *http.Request) {
	ps, err := s.catalog.Projects()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ps == nil {
		ps = []string{}
	}
	writeJSON(w, http.StatusOK, projectsResponse{Projects: ps})
}
