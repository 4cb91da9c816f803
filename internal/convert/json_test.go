package convert

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/doc-keeper/internal/model"
	"github.com/and161185/doc-keeper/internal/service"
	"github.com/and161185/doc-keeper/internal/session"
)

func rel(p string) string { return strings.TrimPrefix(p, "/srv/uploads/") }

func TestToSession(t *testing.T) {
	got := ToSession(session.Session{State: session.Registering, Unlocked: true})
	require.Equal(t, "registering", got.State)
	require.True(t, got.RegistrationMode)
	require.True(t, got.RegistrationUnlocked)
	require.False(t, got.Authenticated)

	got = ToSession(session.Session{State: session.Authenticated, Username: "alice"})
	require.True(t, got.Authenticated)
	require.Equal(t, "alice", got.Username)
}

func TestToUser_Flags(t *testing.T) {
	perms, err := model.NewPermissions(model.PermView, model.PermUpload)
	require.NoError(t, err)
	u := ToUser(model.User{
		Username:    "bob",
		PwdHash:     []byte("secret"),
		Projects:    model.Projects{"A"},
		Permissions: perms,
	})
	require.Equal(t, []string{"upload", "view"}, u.Permissions)
	require.True(t, u.CanUpload)
	require.True(t, u.CanBrowse)
	require.False(t, u.CanDownload)
	require.Equal(t, []string{"A"}, u.Projects)
	require.Empty(t, u.CreatedAt)

	empty := ToUser(model.User{Username: "x"})
	require.NotNil(t, empty.Projects)
	require.NotNil(t, empty.Permissions)
}

func TestToTree_RelativePaths(t *testing.T) {
	f := model.StoredFile{
		FileLocation: model.FileLocation{Project: "P", Discipline: "D", Phase: "F", Filename: "a.png"},
		Path:         filepath.ToSlash("/srv/uploads/P/D/F/a.png"),
		Kind:         model.KindImage,
		Size:         3,
	}
	tree := ToTree(model.Tree{Projects: []model.Project{{
		Name: "P",
		Disciplines: []model.Discipline{{
			Name:   "D",
			Phases: []model.Phase{{Name: "F", Files: []model.StoredFile{f}}},
		}},
	}}}, rel)
	require.Len(t, tree.Projects, 1)
	got := tree.Projects[0].Disciplines[0].Phases[0].Files[0]
	require.Equal(t, "P/D/F/a.png", got.Path)
	require.Equal(t, "image", got.Kind)
}

func TestToUpload(t *testing.T) {
	up := ToUpload(service.UploadResult{Path: "/srv/uploads/P/D/F/a.pdf", Size: 2}, rel)
	require.Equal(t, "P/D/F/a.pdf", up.Path)
	require.Empty(t, up.Superseded)

	up = ToUpload(service.UploadResult{
		Path:       "/srv/uploads/P/D/F/a.pdf",
		Superseded: "/srv/uploads/P/D/F/a_v20240101_120000.pdf",
		Warnings:   []string{"log"},
	}, rel)
	require.Equal(t, "P/D/F/a_v20240101_120000.pdf", up.Superseded)
	require.Equal(t, []string{"log"}, up.Warnings)
}

func TestToLogEntriesAndToken(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("x", 3600))
	es := ToLogEntries([]model.LogEntry{{ID: id, Timestamp: at, User: "alice", Action: model.ActionView, File: "p"}})
	require.Equal(t, id.String(), es[0].ID)
	require.Equal(t, "2024-05-06T06:08:09Z", es[0].Timestamp)
	require.Equal(t, "visualizar", es[0].Action)

	tok := ToToken(model.Token{AccessToken: "abc", ExpiresAt: at})
	require.Equal(t, "abc", tok.AccessToken)
	require.Equal(t, "2024-05-06T06:08:09Z", tok.ExpiresAt)
}
