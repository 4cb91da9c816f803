// Package httpapi exposes the DocKeeper HTTP API.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/service"
	"github.com/and161185/doc-keeper/internal/session"
)

// Catalog is the part of the storage layout the admin panel and path rendering need.
type Catalog interface {
	Root() string
	Projects() ([]string, error)
}

// Deps are the collaborators of Server.
type Deps struct {
	Accounts service.AccountService
	Docs     service.DocumentService
	Machine  *session.Machine
	Tokens   *service.Tokens
	Catalog  Catalog

	// SessionKey authenticates the session cookie.
	SessionKey []byte
	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool
	// MaxUploadBytes bounds a multipart upload request.
	MaxUploadBytes int64
	// LogTail is the default number of log entries returned.
	LogTail int

	Log *zap.Logger
}

// Server wires services into HTTP handlers.
type Server struct {
	accounts  service.AccountService
	docs      service.DocumentService
	machine   *session.Machine
	tokens    *service.Tokens
	catalog   Catalog
	cookies   *sessions.CookieStore
	maxUpload int64
	logTail   int
	log       *zap.Logger
}

const maxJSONBody = 1 << 20

// New constructs a Server with injected services.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 64 << 20
	}
	if d.LogTail <= 0 {
		d.LogTail = 50
	}
	return &Server{
		accounts:  d.Accounts,
		docs:      d.Docs,
		machine:   d.Machine,
		tokens:    d.Tokens,
		catalog:   d.Catalog,
		cookies:   newCookieStore(d.SessionKey, d.SecureCookie),
		maxUpload: d.MaxUploadBytes,
		logTail:   d.LogTail,
		log:       d.Log,
	}
}

func routeError(code int, msg string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, code, errorBody{Error: msg, RequestID: RequestIDFromCtx(r.Context())})
	})
}

// Handler builds the routed handler with request id, recovery and logging middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(RequestID, Logging(s.log), Recover(s.log))
	// mux skips r.Use middleware for unmatched routes.
	r.NotFoundHandler = RequestID(routeError(http.StatusNotFound, "no such route"))
	r.MethodNotAllowedHandler = RequestID(routeError(http.StatusMethodNotAllowed, "method not allowed"))

	api := r.PathPrefix("/api/v1").Subrouter()

	sess := api.PathPrefix("/session").Subrouter()
	sess.HandleFunc("", s.getSession).Methods(http.MethodGet)
	sess.HandleFunc("", s.resetSession).Methods(http.MethodDelete)
	sess.HandleFunc("/login", s.login).Methods(http.MethodPost)
	sess.HandleFunc("/register", s.chooseRegister).Methods(http.MethodPost)
	sess.HandleFunc("/admin", s.chooseAdmin).Methods(http.MethodPost)
	sess.HandleFunc("/master", s.submitMaster).Methods(http.MethodPost)
	sess.HandleFunc("/users", s.createUser).Methods(http.MethodPost)
	sess.HandleFunc("/back", s.back).Methods(http.MethodPost)
	sess.HandleFunc("/exit", s.exitAdmin).Methods(http.MethodPost)
	sess.HandleFunc("/logout", s.logout).Methods(http.MethodPost)

	api.HandleFunc("/token", s.issueToken).Methods(http.MethodPost)

	user := api.NewRoute().Subrouter()
	user.Use(s.requireUser)
	user.HandleFunc("/files", s.tree).Methods(http.MethodGet)
	user.HandleFunc("/files/search", s.search).Methods(http.MethodGet)
	user.HandleFunc("/files/{project}/{discipline}/{phase}", s.upload).Methods(http.MethodPost)
	user.HandleFunc("/files/{project}/{discipline}/{phase}/{filename}", s.preview).Methods(http.MethodGet)
	user.HandleFunc("/files/{project}/{discipline}/{phase}/{filename}/download", s.download).Methods(http.MethodGet)
	user.HandleFunc("/logs", s.logs).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{username}", s.updateUser).Methods(http.MethodPut)
	admin.HandleFunc("/users/{username}", s.deleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/projects", s.projects).Methods(http.MethodGet)

	return r
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: bad json: %w", errs.ErrInvalidInput, err)
	}
	return nil
}

// rel renders a stored path relative to the storage root, with forward slashes.
func (s *Server) rel(p string) string {
	r, err := filepath.Rel(s.catalog.Root(), p)
	if err != nil {
		return filepath.Base(p)
	}
	return filepath.ToSlash(r)
}
