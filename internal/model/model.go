// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Permission is a single capability granted to a user.
type Permission string

// The fixed permission set; nothing else is ever stored.
const (
	PermUpload   Permission = "upload"
	PermDownload Permission = "download"
	PermView     Permission = "view"
)

// AllPermissions lists the permission set in display order.
var AllPermissions = []Permission{PermUpload, PermDownload, PermView}

// Valid reports whether p is one of the fixed permissions.
func (p Permission) Valid() bool {
	switch p {
	case PermUpload, PermDownload, PermView:
		return true
	}
	return false
}

// Permissions is a set of permissions.
type Permissions map[Permission]struct{}

// NewPermissions builds a set, rejecting unknown names.
func NewPermissions(ps ...Permission) (Permissions, error) {
	set := make(Permissions, len(ps))
	for _, p := range ps {
		p = Permission(strings.TrimSpace(string(p)))
		if p == "" {
			continue
		}
		if !p.Valid() {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
		set[p] = struct{}{}
	}
	return set, nil
}

// ParsePermissions decodes the CSV column form. Unknown names are dropped so that
// a hand-edited row never grants anything outside the fixed set.
func ParsePermissions(csv string) Permissions {
	set := Permissions{}
	for _, s := range splitCSV(csv) {
		if p := Permission(s); p.Valid() {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has reports whether p is in the set.
func (ps Permissions) Has(p Permission) bool {
	_, ok := ps[p]
	return ok
}

// CanUpload gates upload controls.
func (ps Permissions) CanUpload() bool { return ps.Has(PermUpload) }

// CanBrowse gates the hierarchy listing, inline previews and search results.
func (ps Permissions) CanBrowse() bool { return ps.Has(PermDownload) || ps.Has(PermView) }

// CanDownload gates fetching raw bytes; view alone is not enough.
func (ps Permissions) CanDownload() bool { return ps.Has(PermDownload) }

// List returns the set in display order.
func (ps Permissions) List() []Permission {
	out := make([]Permission, 0, len(ps))
	for _, p := range AllPermissions {
		if ps.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// CSV encodes the set for the permissions column.
func (ps Permissions) CSV() string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps.List() {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ",")
}

// Projects is the set of project names a user may see. Empty means unrestricted.
type Projects []string

// ParseProjects decodes the CSV column form.
func ParseProjects(csv string) Projects {
	return NormalizeProjects(splitCSV(csv))
}

// NormalizeProjects trims, de-duplicates and sorts project names.
func NormalizeProjects(in []string) Projects {
	seen := make(map[string]struct{}, len(in))
	out := make(Projects, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Allows reports whether project is visible under this set.
func (ps Projects) Allows(project string) bool {
	if len(ps) == 0 {
		return true
	}
	for _, p := range ps {
		if p == project {
			return true
		}
	}
	return false
}

// CSV encodes the set for the projects column.
func (ps Projects) CSV() string { return strings.Join(ps, ",") }

func splitCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// User represents an account. The password is never stored in plaintext.
type User struct {
	Username    string // unique
	PwdHash     []byte // Argon2id(password, PwdSalt)
	PwdSalt     []byte // per-user salt
	Projects    Projects
	Permissions Permissions
	CreatedAt   time.Time
}

// UserUpdate is an administrator edit. A nil PwdHash leaves the password unchanged.
type UserUpdate struct {
	Username    string
	PwdHash     []byte
	PwdSalt     []byte
	Projects    Projects
	Permissions Permissions
}

// Action names a logged user action.
type Action string

// Logged actions. "visualizar" is the historical name of a view/open.
const (
	ActionUpload Action = "upload"
	ActionView   Action = "visualizar"
)

// LogEntry is one immutable action-log record.
type LogEntry struct {
	ID        uuid.UUID
	Timestamp time.Time
	User      string
	Action    Action
	File      string // path, optionally followed by " (<note>)"
}

// FileWithNote renders the file column, embedding an optional free-text note.
func FileWithNote(file, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return file
	}
	return file + " (" + note + ")"
}

// FileKind classifies a stored file for preview purposes.
type FileKind string

// File kinds by extension.
const (
	KindPDF   FileKind = "pdf"
	KindImage FileKind = "image"
	KindOther FileKind = "other"
)

// FileLocation identifies a stored file inside the hierarchy.
type FileLocation struct {
	Project    string
	Discipline string
	Phase      string
	Filename   string
}

// StoredFile describes one file found on disk.
type StoredFile struct {
	FileLocation
	Path    string // full path under the storage root
	Kind    FileKind
	Size    int64
	ModTime time.Time
}

// Phase groups the files of one project/discipline/phase directory.
type Phase struct {
	Name  string
	Files []StoredFile
}

// Discipline groups phases.
type Discipline struct {
	Name   string
	Phases []Phase
}

// Project groups disciplines.
type Project struct {
	Name        string
	Disciplines []Discipline
}

// Tree is the full sorted hierarchy listing.
type Tree struct {
	Projects []Project
}
