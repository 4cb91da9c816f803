package httpapi

import (
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/and161185/doc-keeper/internal/session"
)

// CookieName is the session cookie.
const CookieName = "dk_session"

const (
	keyState    = "state"
	keyUser     = "user"
	keyUnlocked = "unlocked"
)

func newCookieStore(key []byte, secure bool) *sessions.CookieStore {
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   12 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return cs
}

// loadSession decodes the cookie. A missing, tampered or malformed cookie
// yields a fresh logged-out session.
func (s *Server) loadSession(r *http.Request) (session.Session, *sessions.Session) {
	raw, err := s.cookies.Get(r, CookieName)
	if err != nil {
		s.log.Debug("session cookie rejected", zap.Error(err))
	}
	state, _ := raw.Values[keyState].(string)
	user, _ := raw.Values[keyUser].(string)
	unlocked, _ := raw.Values[keyUnlocked].(bool)
	sess := session.Session{State: session.State(state), Username: user, Unlocked: unlocked}
	if !sess.Valid() {
		sess = session.New()
	}
	return sess, raw
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, raw *sessions.Session, sess session.Session) error {
	raw.Values[keyState] = string(sess.State)
	raw.Values[keyUser] = sess.Username
	raw.Values[keyUnlocked] = sess.Unlocked
	return raw.Save(r, w)
}
