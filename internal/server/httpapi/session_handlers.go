package httpapi

import (
	"context"
	"net/http"

	"github.com/and161185/doc-keeper/internal/convert"
	"github.com/and161185/doc-keeper/internal/session"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type masterRequest struct {
	Passphrase string `json:"passphrase"`
}

// transition applies one state-machine step and persists the result.
// A failed step leaves the cookie untouched.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, step func(context.Context, session.Session) (session.Session, error)) {
	cur, raw := s.loadSession(r)
	next, err := step(r.Context(), cur)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.saveSession(w, r, raw, next); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToSession(next))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	cur, _ := s.loadSession(r)
	writeJSON(w, http.StatusOK, convert.ToSession(cur))
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(_ context.Context, cur session.Session) (session.Session, error) {
		return s.machine.Reset(cur), nil
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.transition(w, r, func(ctx context.Context, cur session.Session) (session.Session, error) {
		return s.machine.Login(ctx, cur, req.Username, req.Password)
	})
}

func (s *Server) chooseRegister(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(_ context.Context, cur session.Session) (session.Session, error) {
		return s.machine.ChooseRegister(cur)
	})
}

func (s *Server) chooseAdmin(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(_ context.Context, cur session.Session) (session.Session, error) {
		return s.machine.ChooseAdmin(cur)
	})
}

func (s *Server) submitMaster(w http.ResponseWriter, r *http.Request) {
	var req masterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.transition(w, r, func(_ context.Context, cur session.Session) (session.Session, error) {
		return s.machine.SubmitMaster(cur, req.Passphrase)
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.transition(w, r, func(ctx context.Context, cur session.Session) (session.Session, error) {
		return s.machine.CreateUser(ctx, cur, req.Username, req.Password)
	})
}

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(_ context.Context, cur session.Session) (session.Session, error) {
		return s.machine.Back(cur)
	})
}

func (s *Server) exitAdmin(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(_ context.Context, cur session.Session) (session.Session, error) {
		return s.machine.ExitAdmin(cur)
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(_ context.Context, cur session.Session) (session.Session, error) {
		return s.machine.Logout(cur)
	})
}

// issueToken exchanges credentials for a bearer token used by the CLI.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tok, err := s.tokens.Issue(u.Username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToToken(tok))
}
