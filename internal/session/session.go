// Package session implements the per-connection screen state machine:
// login, registration, admin authentication, admin panel and the signed-in user.
//
// A Session is a plain value. Every transition takes the current value and
// returns the next one; on error the input is returned unchanged.
package session

import (
	"context"
	"fmt"

	pkgcrypto "github.com/and161185/doc-keeper/internal/crypto"
	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
)

// State names the active screen.
type State string

// The five mutually exclusive states.
const (
	LoggedOut     State = "logged_out"
	Registering   State = "registering"
	AdminAuth     State = "admin_auth"
	AdminPanel    State = "admin_panel"
	Authenticated State = "authenticated"
)

// Session is the transient state of one connection.
type Session struct {
	State State
	// Username is set only in Authenticated.
	Username string
	// Unlocked is set only in Registering, after the master passphrase was accepted.
	Unlocked bool
}

// New returns the initial, logged-out session.
func New() Session { return Session{State: LoggedOut} }

// Valid reports whether s is one of the reachable shapes.
func (s Session) Valid() bool {
	switch s.State {
	case LoggedOut, AdminAuth, AdminPanel:
		return s.Username == "" && !s.Unlocked
	case Registering:
		return s.Username == ""
	case Authenticated:
		return s.Username != "" && !s.Unlocked
	}
	return false
}

// Flags is the flag view of a session, one boolean per screen concern.
type Flags struct {
	Authenticated        bool
	Username             string
	RegistrationMode     bool
	RegistrationUnlocked bool
	AdminMode            bool
	AdminAuthenticated   bool
}

// Flags expands the state into flags.
func (s Session) Flags() Flags {
	return Flags{
		Authenticated:        s.State == Authenticated,
		Username:             s.Username,
		RegistrationMode:     s.State == Registering,
		RegistrationUnlocked: s.State == Registering && s.Unlocked,
		AdminMode:            s.State == AdminAuth || s.State == AdminPanel,
		AdminAuthenticated:   s.State == AdminPanel,
	}
}

// Accounts is what the machine needs from the Account Store.
type Accounts interface {
	Authenticate(ctx context.Context, username, password string) (model.User, error)
	Register(ctx context.Context, username, password string) error
}

// Machine applies transitions. It holds no per-session data and is safe for concurrent use.
type Machine struct {
	accounts Accounts
	master   string
}

// NewMachine constructs a Machine; master is the shared passphrase gating
// registration and the admin panel.
func NewMachine(accounts Accounts, master string) *Machine {
	return &Machine{accounts: accounts, master: master}
}

func invalid(s Session, op string) error {
	return fmt.Errorf("%w: %s from %s", errs.ErrInvalidTransition, op, s.State)
}

// Login moves LoggedOut to Authenticated when the credentials match an account.
func (m *Machine) Login(ctx context.Context, s Session, username, password string) (Session, error) {
	if s.State != LoggedOut {
		return s, invalid(s, "login")
	}
	u, err := m.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return s, err
	}
	return Session{State: Authenticated, Username: u.Username}, nil
}

// ChooseRegister opens the locked registration screen.
func (m *Machine) ChooseRegister(s Session) (Session, error) {
	if s.State != LoggedOut {
		return s, invalid(s, "register")
	}
	return Session{State: Registering}, nil
}

// ChooseAdmin opens the admin passphrase screen.
func (m *Machine) ChooseAdmin(s Session) (Session, error) {
	if s.State != LoggedOut {
		return s, invalid(s, "admin")
	}
	return Session{State: AdminAuth}, nil
}

// SubmitMaster unlocks registration or opens the admin panel. Re-submitting on an
// unlocked registration screen re-checks the passphrase and stays unlocked.
func (m *Machine) SubmitMaster(s Session, passphrase string) (Session, error) {
	switch s.State {
	case Registering, AdminAuth:
	default:
		return s, invalid(s, "master passphrase")
	}
	if !pkgcrypto.EqualSecret(passphrase, m.master) {
		return s, errs.ErrWrongMasterPassphrase
	}
	if s.State == AdminAuth {
		return Session{State: AdminPanel}, nil
	}
	return Session{State: Registering, Unlocked: true}, nil
}

// CreateUser registers a new account from an unlocked registration screen and
// returns to LoggedOut. A taken username leaves both the store and the session as they were.
func (m *Machine) CreateUser(ctx context.Context, s Session, username, password string) (Session, error) {
	if s.State != Registering || !s.Unlocked {
		return s, invalid(s, "create user")
	}
	if err := m.accounts.Register(ctx, username, password); err != nil {
		return s, err
	}
	return New(), nil
}

// Back leaves registration, dropping the unlock.
func (m *Machine) Back(s Session) (Session, error) {
	if s.State != Registering {
		return s, invalid(s, "back")
	}
	return New(), nil
}

// ExitAdmin leaves the admin screens, dropping admin authentication.
func (m *Machine) ExitAdmin(s Session) (Session, error) {
	if s.State != AdminPanel && s.State != AdminAuth {
		return s, invalid(s, "exit admin")
	}
	return New(), nil
}

// Logout ends an authenticated session.
func (m *Machine) Logout(s Session) (Session, error) {
	if s.State != Authenticated {
		return s, invalid(s, "logout")
	}
	return New(), nil
}

// Reset discards any state.
func (m *Machine) Reset(Session) Session { return New() }

// RequireUser returns the username of an authenticated session.
func RequireUser(s Session) (string, error) {
	if s.State != Authenticated || s.Username == "" {
		return "", errs.ErrUnauthorized
	}
	return s.Username, nil
}

// RequireAdmin succeeds only on the admin panel.
func RequireAdmin(s Session) error {
	if s.State != AdminPanel {
		return errs.ErrUnauthorized
	}
	return nil
}
