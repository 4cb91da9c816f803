// Package convert maps domain values to the JSON shapes of the HTTP API.
package convert

import (
	"time"

	"github.com/and161185/doc-keeper/internal/model"
	"github.com/and161185/doc-keeper/internal/service"
	"github.com/and161185/doc-keeper/internal/session"
)

// --- helpers ---

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// --- Session ---

// Session is the JSON form of the session flags.
type Session struct {
	State                string `json:"state"`
	Authenticated        bool   `json:"authenticated"`
	Username             string `json:"username,omitempty"`
	RegistrationMode     bool   `json:"registration_mode"`
	RegistrationUnlocked bool   `json:"registration_unlocked"`
	AdminMode            bool   `json:"admin_mode"`
	AdminAuthenticated   bool   `json:"admin_authenticated"`
}

// ToSession renders a session value.
func ToSession(s session.Session) Session {
	f := s.Flags()
	return Session{
		State:                string(s.State),
		Authenticated:        f.Authenticated,
		Username:             f.Username,
		RegistrationMode:     f.RegistrationMode,
		RegistrationUnlocked: f.RegistrationUnlocked,
		AdminMode:            f.AdminMode,
		AdminAuthenticated:   f.AdminAuthenticated,
	}
}

// --- Users ---

// User is an account as shown on the admin panel. Hashes never leave the server.
type User struct {
	Username    string   `json:"username"`
	Projects    []string `json:"projects"`
	Permissions []string `json:"permissions"`
	CanUpload   bool     `json:"can_upload"`
	CanBrowse   bool     `json:"can_browse"`
	CanDownload bool     `json:"can_download"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// ToUser converts a domain user.
func ToUser(u model.User) User {
	perms := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions.List() {
		perms = append(perms, string(p))
	}
	projects := append([]string{}, u.Projects...)
	return User{
		Username:    u.Username,
		Projects:    projects,
		Permissions: perms,
		CanUpload:   u.Permissions.CanUpload(),
		CanBrowse:   u.Permissions.CanBrowse(),
		CanDownload: u.Permissions.CanDownload(),
		CreatedAt:   ts(u.CreatedAt),
	}
}

// ToUsers converts a slice of users.
func ToUsers(us []model.User) []User {
	out := make([]User, 0, len(us))
	for _, u := range us {
		out = append(out, ToUser(u))
	}
	return out
}

// UserUpdate is the admin edit request body. An empty password keeps the old one.
type UserUpdate struct {
	Password    string   `json:"password"`
	Projects    []string `json:"projects"`
	Permissions []string `json:"permissions"`
}

// FromPermissions converts permission names; validation happens in the service.
func FromPermissions(in []string) []model.Permission {
	out := make([]model.Permission, 0, len(in))
	for _, p := range in {
		out = append(out, model.Permission(p))
	}
	return out
}

// --- Files ---

// File is one stored file.
type File struct {
	Project    string `json:"project"`
	Discipline string `json:"discipline"`
	Phase      string `json:"phase"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	Size       int64  `json:"size"`
	ModTime    string `json:"mod_time,omitempty"`
}

// ToFile converts a stored file. rel is the path relative to the storage root.
func ToFile(f model.StoredFile, rel string) File {
	return File{
		Project:    f.Project,
		Discipline: f.Discipline,
		Phase:      f.Phase,
		Filename:   f.Filename,
		Path:       rel,
		Kind:       string(f.Kind),
		Size:       f.Size,
		ModTime:    ts(f.ModTime),
	}
}

// Phase groups files.
type Phase struct {
	Name  string `json:"name"`
	Files []File `json:"files"`
}

// Discipline groups phases.
type Discipline struct {
	Name   string  `json:"name"`
	Phases []Phase `json:"phases"`
}

// Project groups disciplines.
type Project struct {
	Name        string       `json:"name"`
	Disciplines []Discipline `json:"disciplines"`
}

// Tree is the hierarchy listing.
type Tree struct {
	Projects []Project `json:"projects"`
}

// ToTree converts the hierarchy; relFn maps an absolute path to the wire path.
func ToTree(t model.Tree, relFn func(string) string) Tree {
	out := Tree{Projects: make([]Project, 0, len(t.Projects))}
	for _, p := range t.Projects {
		pp := Project{Name: p.Name, Disciplines: make([]Discipline, 0, len(p.Disciplines))}
		for _, d := range p.Disciplines {
			dd := Discipline{Name: d.Name, Phases: make([]Phase, 0, len(d.Phases))}
			for _, ph := range d.Phases {
				dd.Phases = append(dd.Phases, Phase{Name: ph.Name, Files: ToFiles(ph.Files, relFn)})
			}
			pp.Disciplines = append(pp.Disciplines, dd)
		}
		out.Projects = append(out.Projects, pp)
	}
	return out
}

// ToFiles converts a slice of stored files.
func ToFiles(fs []model.StoredFile, relFn func(string) string) []File {
	out := make([]File, 0, len(fs))
	for _, f := range fs {
		out = append(out, ToFile(f, relFn(f.Path)))
	}
	return out
}

// Upload is the response to a successful upload.
type Upload struct {
	Path       string   `json:"path"`
	Superseded string   `json:"superseded,omitempty"`
	Size       int64    `json:"size"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ToUpload converts an upload result, mapping paths through relFn.
func ToUpload(r service.UploadResult, relFn func(string) string) Upload {
	out := Upload{Path: relFn(r.Path), Size: r.Size, Warnings: r.Warnings}
	if r.Superseded != "" {
		out.Superseded = relFn(r.Superseded)
	}
	return out
}

// --- Log ---

// LogEntry is one action-log row.
type LogEntry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Action    string `json:"action"`
	File      string `json:"file"`
}

// ToLogEntries converts the log tail.
func ToLogEntries(es []model.LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(es))
	for _, e := range es {
		out = append(out, LogEntry{
			ID:        e.ID.String(),
			Timestamp: ts(e.Timestamp),
			User:      e.User,
			Action:    string(e.Action),
			File:      e.File,
		})
	}
	return out
}

// --- Token ---

// Token is the bearer token response.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// ToToken converts an issued token.
func ToToken(t model.Token) Token {
	return Token{AccessToken: t.AccessToken, ExpiresAt: ts(t.ExpiresAt)}
}
