package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
	"github.com/and161185/doc-keeper/internal/storage"
)

func userWith(t *testing.T, name string, projects model.Projects, perms ...model.Permission) model.User {
	t.Helper()
	set, err := model.NewPermissions(perms...)
	require.NoError(t, err)
	return model.User{Username: name, Projects: projects, Permissions: set}
}

func newDocs(t *testing.T, opts ...storage.Option) (*DocumentServiceImpl, *fakeLogs, *storage.Layout) {
	t.Helper()
	layout, err := storage.New(filepath.Join(t.TempDir(), "uploads"), opts...)
	require.NoError(t, err)
	logs := &fakeLogs{}
	return NewDocumentService(layout, logs, zaptest.NewLogger(t), 50), logs, layout
}

var pdfLoc = model.FileLocation{Project: "ProjA", Discipline: "Civil", Phase: "Design", Filename: "spec.pdf"}

func TestDocuments_UploadTwice_EndToEnd(t *testing.T) {
	t.Parallel()
	s, logs, layout := newDocs(t)
	alice := userWith(t, "alice", nil, model.PermUpload, model.PermView)
	ctx := context.Background()

	res, err := s.Upload(ctx, alice, pdfLoc, strings.NewReader("v1"), "")
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	want := filepath.Join(layout.Root(), "ProjA", "Civil", "Design", "spec.pdf")
	require.Equal(t, want, res.Path)
	require.Len(t, logs.entries, 1)
	require.Equal(t, model.ActionUpload, logs.entries[0].Action)
	require.Equal(t, want, logs.entries[0].File)
	require.Equal(t, "alice", logs.entries[0].User)

	res2, err := s.Upload(ctx, alice, pdfLoc, strings.NewReader("v2"), "rev b")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`spec_v\d{8}_\d{6}\.pdf$`), res2.Superseded)
	require.Equal(t, want+" (rev b)", logs.entries[1].File)

	cur, err := os.ReadFile(want)
	require.NoError(t, err)
	require.Equal(t, "v2", string(cur))
	old, err := os.ReadFile(res2.Superseded)
	require.NoError(t, err)
	require.Equal(t, "v1", string(old))

	entries, err := os.ReadDir(filepath.Dir(want))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestDocuments_UploadGating(t *testing.T) {
	t.Parallel()
	s, logs, _ := newDocs(t)
	ctx := context.Background()

	viewer := userWith(t, "v", nil, model.PermView, model.PermDownload)
	_, err := s.Upload(ctx, viewer, pdfLoc, strings.NewReader("x"), "")
	require.ErrorIs(t, err, errs.ErrForbidden)

	scoped := userWith(t, "s", model.Projects{"ProjB"}, model.PermUpload)
	_, err = s.Upload(ctx, scoped, pdfLoc, strings.NewReader("x"), "")
	require.ErrorIs(t, err, errs.ErrForbidden)

	up := userWith(t, "u", nil, model.PermUpload)
	bad := pdfLoc
	bad.Phase = ".."
	_, err = s.Upload(ctx, up, bad, strings.NewReader("x"), "")
	require.ErrorIs(t, err, errs.ErrInvalidPath)
	require.Empty(t, logs.entries)
}

func TestDocuments_LogFailureIsWarning(t *testing.T) {
	t.Parallel()
	s, logs, _ := newDocs(t)
	logs.appendErr = errors.New("disk full")
	u := userWith(t, "alice", nil, model.PermUpload, model.PermDownload)

	res, err := s.Upload(context.Background(), u, pdfLoc, strings.NewReader("x"), "")
	require.NoError(t, err, "upload survives a log failure")
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], errs.ErrLogWrite.Error())
	require.FileExists(t, res.Path)

	op, err := s.Download(context.Background(), u, pdfLoc)
	require.NoError(t, err)
	defer op.File.Close()
	require.Len(t, op.Warnings, 1)
}

func TestDocuments_ViewOnlyCannotDownload(t *testing.T) {
	t.Parallel()
	s, logs, _ := newDocs(t)
	ctx := context.Background()
	uploader := userWith(t, "up", nil, model.PermUpload)
	_, err := s.Upload(ctx, uploader, pdfLoc, strings.NewReader("%PDF"), "")
	require.NoError(t, err)

	viewer := userWith(t, "v", nil, model.PermView)
	tree, err := s.Tree(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, tree.Projects, 1)
	require.Equal(t, "spec.pdf", tree.Projects[0].Disciplines[0].Phases[0].Files[0].Filename)

	op, err := s.Preview(ctx, viewer, pdfLoc)
	require.NoError(t, err)
	b, err := io.ReadAll(op.File)
	require.NoError(t, err)
	require.NoError(t, op.File.Close())
	require.Equal(t, "%PDF", string(b))
	require.Equal(t, model.KindPDF, op.Info.Kind)
	require.Equal(t, model.ActionView, logs.entries[len(logs.entries)-1].Action)

	_, err = s.Download(ctx, viewer, pdfLoc)
	require.ErrorIs(t, err, errs.ErrForbidden)

	nobody := userWith(t, "n", nil)
	_, err = s.Tree(ctx, nobody)
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = s.Search(ctx, nobody, "spec")
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = s.Preview(ctx, nobody, pdfLoc)
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestDocuments_DownloadMissingFile(t *testing.T) {
	t.Parallel()
	s, logs, _ := newDocs(t)
	u := userWith(t, "d", nil, model.PermDownload)
	_, err := s.Download(context.Background(), u, pdfLoc)
	require.ErrorIs(t, err, errs.ErrFileNotFound)
	require.Empty(t, logs.entries)
}

func TestDocuments_ProjectScoping(t *testing.T) {
	t.Parallel()
	s, _, _ := newDocs(t)
	ctx := context.Background()
	up := userWith(t, "up", nil, model.PermUpload)
	for _, p := range []string{"ProjA", "ProjB"} {
		loc := pdfLoc
		loc.Project = p
		loc.Filename = "report-" + p + ".pdf"
		_, err := s.Upload(ctx, up, loc, strings.NewReader("x"), "")
		require.NoError(t, err)
	}

	scoped := userWith(t, "b", model.Projects{"ProjB"}, model.PermDownload)
	tree, err := s.Tree(ctx, scoped)
	require.NoError(t, err)
	require.Len(t, tree.Projects, 1)
	require.Equal(t, "ProjB", tree.Projects[0].Name)

	found, err := s.Search(ctx, scoped, "REPORT")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "report-ProjB.pdf", found[0].Filename)

	locA := pdfLoc
	locA.Filename = "report-ProjA.pdf"
	_, err = s.Download(ctx, scoped, locA)
	require.ErrorIs(t, err, errs.ErrForbidden)

	all := userWith(t, "all", nil, model.PermView)
	found, err = s.Search(ctx, all, "report")
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestDocuments_LogTailCapped(t *testing.T) {
	t.Parallel()
	s, logs, _ := newDocs(t, storage.WithClock(time.Now))
	_, err := s.LogTail(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 50, logs.lastLimit)
	_, err = s.LogTail(context.Background(), 500)
	require.NoError(t, err)
	require.Equal(t, 50, logs.lastLimit)
	_, err = s.LogTail(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 10, logs.lastLimit)
}

func TestDocuments_PreviewOtherKindNeedsDownload(t *testing.T) {
	t.Parallel()
	s, logs, _ := newDocs(t)
	ctx := context.Background()
	sheet := model.FileLocation{Project: "P", Discipline: "D", Phase: "F", Filename: "budget.xlsx"}
	up := userWith(t, "up", nil, model.PermUpload)
	_, err := s.Upload(ctx, up, sheet, strings.NewReader("RAW-SPREADSHEET"), "")
	require.NoError(t, err)
	logged := len(logs.entries)

	viewer := userWith(t, "v", nil, model.PermView)
	_, err = s.Preview(ctx, viewer, sheet)
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.Len(t, logs.entries, logged)

	both := userWith(t, "d", nil, model.PermView, model.PermDownload)
	op, err := s.Preview(ctx, both, sheet)
	require.NoError(t, err)
	require.NoError(t, op.File.Close())
	require.Equal(t, model.KindOther, op.Info.Kind)
}
