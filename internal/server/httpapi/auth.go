package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
	"github.com/and161185/doc-keeper/internal/session"
)

func bearerToken(r *http.Request) (string, bool) {
	for _, v := range r.Header.Values("Authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, true
			}
		}
	}
	return "", false
}

// currentUser resolves the caller from a bearer token or, failing that, the
// session cookie. The account is re-read so admin edits apply immediately.
func (s *Server) currentUser(r *http.Request) (model.User, error) {
	var name string
	if tok, ok := bearerToken(r); ok {
		sub, err := s.tokens.Verify(tok)
		if err != nil {
			return model.User{}, err
		}
		name = sub
	} else {
		sess, _ := s.loadSession(r)
		sub, err := session.RequireUser(sess)
		if err != nil {
			return model.User{}, err
		}
		name = sub
	}
	u, err := s.accounts.Get(r.Context(), name)
	if errors.Is(err, errs.ErrNotFound) {
		return model.User{}, errs.ErrUnauthorized
	}
	return u, err
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.currentUser(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := s.loadSession(r)
		if err := session.RequireAdmin(sess); err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func mustUser(r *http.Request) model.User {
	u, ok := UserFromCtx(r.Context())
	if !ok {
		panic("httpapi: handler mounted without requireUser")
	}
	return u
}
