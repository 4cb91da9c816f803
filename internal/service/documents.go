package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
	"github.com/and161185/doc-keeper/internal/repository"
	"github.com/and161185/doc-keeper/internal/storage"
)

// DocumentService defines permission-gated operations over the uploads tree.
type DocumentService interface {
	// Upload stores r under loc and logs the upload.
	Upload(ctx context.Context, u model.User, loc model.FileLocation, r io.Reader, note string) (UploadResult, error)
	// Tree lists the visible hierarchy.
	Tree(ctx context.Context, u model.User) (model.Tree, error)
	// Search matches filenames across the visible tree.
	Search(ctx context.Context, u model.User, keyword string) ([]model.StoredFile, error)
	// Preview opens a file for inline rendering and logs the view.
	Preview(ctx context.Context, u model.User, loc model.FileLocation) (Opened, error)
	// Download opens a file for raw download and logs it.
	Download(ctx context.Context, u model.User, loc model.FileLocation) (Opened, error)
	// LogTail returns the newest action-log entries.
	LogTail(ctx context.Context, limit int) ([]model.LogEntry, error)
}

// UploadResult reports where the upload landed. Warnings carry non-fatal
// failures such as a lost log entry.
type UploadResult struct {
	Path       string
	Superseded string
	Size       int64
	Warnings   []string
}

// Opened is a stored file ready to be streamed; the caller closes File.
type Opened struct {
	File     *os.File
	Info     model.StoredFile
	Warnings []string
}

type DocumentServiceImpl struct {
	layout  *storage.Layout
	logs    repository.LogRepository
	log     *zap.Logger
	now     func() time.Time
	maxTail int
}

// NewDocumentService constructs DocumentService over a storage layout and the action log.
func NewDocumentService(layout *storage.Layout, logs repository.LogRepository, log *zap.Logger, maxTail int) *DocumentServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if maxTail <= 0 {
		maxTail = 50
	}
	return &DocumentServiceImpl{layout: layout, logs: logs, log: log, now: time.Now, maxTail: maxTail}
}

func forbidden(what string) error { return fmt.Errorf("%w: %s", errs.ErrForbidden, what) }

func checkProject(u model.User, project string) error {
	if !u.Projects.Allows(project) {
		return forbidden("project " + project)
	}
	return nil
}

// Upload requires the upload permission and access to the target project.
func (s *DocumentServiceImpl) Upload(ctx context.Context, u model.User, loc model.FileLocation, r io.Reader, note string) (UploadResult, error) {
	if !u.Permissions.CanUpload() {
		return UploadResult{}, forbidden("upload")
	}
	if err := checkProject(u, loc.Project); err != nil {
		return UploadResult{}, err
	}
	loc.Filename = filepath.Base(filepath.Clean("/" + filepath.ToSlash(loc.Filename)))
	adm, err := s.layout.Store(loc, r)
	if err != nil {
		return UploadResult{}, err
	}
	s.log.Info("upload stored",
		zap.String("user", u.Username),
		zap.String("path", adm.Path),
		zap.String("superseded", adm.Superseded),
		zap.Int64("size", adm.Size),
	)
	res := UploadResult{Path: adm.Path, Superseded: adm.Superseded, Size: adm.Size}
	if w := s.record(ctx, u.Username, model.ActionUpload, model.FileWithNote(adm.Path, note)); w != "" {
		res.Warnings = append(res.Warnings, w)
	}
	return res, nil
}

// Tree requires download or view and hides projects outside the user's set.
func (s *DocumentServiceImpl) Tree(_ context.Context, u model.User) (model.Tree, error) {
	if !u.Permissions.CanBrowse() {
		return model.Tree{}, forbidden("browse")
	}
	tree, err := s.layout.Tree()
	if err != nil {
		return model.Tree{}, err
	}
	visible := tree.Projects[:0]
	for _, p := range tree.Projects {
		if u.Projects.Allows(p.Name) {
			visible = append(visible, p)
		}
	}
	tree.Projects = visible
	return tree, nil
}

// Search is gated like Tree.
func (s *DocumentServiceImpl) Search(_ context.Context, u model.User, keyword string) ([]model.StoredFile, error) {
	if !u.Permissions.CanBrowse() {
		return nil, forbidden("search")
	}
	found, err := s.layout.Search(keyword)
	if err != nil {
		return nil, err
	}
	out := found[:0]
	for _, f := range found {
		if u.Projects.Allows(f.Project) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Preview requires download or view. Files that cannot render inline are raw
// bytes, so they additionally require download.
func (s *DocumentServiceImpl) Preview(ctx context.Context, u model.User, loc model.FileLocation) (Opened, error) {
	if !u.Permissions.CanBrowse() {
		return Opened{}, forbidden("view")
	}
	if storage.KindOf(loc.Filename) == model.KindOther && !u.Permissions.CanDownload() {
		return Opened{}, forbidden("download")
	}
	return s.open(ctx, u, loc, "")
}

// Download requires download, whatever else the user holds.
func (s *DocumentServiceImpl) Download(ctx context.Context, u model.User, loc model.FileLocation) (Opened, error) {
	if !u.Permissions.CanDownload() {
		return Opened{}, forbidden("download")
	}
	return s.open(ctx, u, loc, "download")
}

func (s *DocumentServiceImpl) open(ctx context.Context, u model.User, loc model.FileLocation, note string) (Opened, error) {
	if err := checkProject(u, loc.Project); err != nil {
		return Opened{}, err
	}
	f, info, err := s.layout.Open(loc)
	if err != nil {
		return Opened{}, err
	}
	op := Opened{File: f, Info: info}
	if w := s.record(ctx, u.Username, model.ActionView, model.FileWithNote(info.Path, note)); w != "" {
		op.Warnings = append(op.Warnings, w)
	}
	return op, nil
}

// LogTail returns at most limit entries, capped by the configured tail size.
func (s *DocumentServiceImpl) LogTail(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if limit <= 0 || limit > s.maxTail {
		limit = s.maxTail
	}
	return s.logs.Tail(ctx, limit)
}

// record appends one log entry. A failed append never undoes the action;
// it is logged and handed back as a warning.
func (s *DocumentServiceImpl) record(ctx context.Context, user string, action model.Action, file string) string {
	id, err := uuid.NewV4()
	if err == nil {
		err = s.logs.Append(ctx, model.LogEntry{
			ID:        id,
			Timestamp: s.now(),
			User:      user,
			Action:    action,
			File:      file,
		})
	}
	if err != nil {
		s.log.Warn("action log append failed",
			zap.String("user", user),
			zap.String("action", string(action)),
			zap.String("file", file),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", errs.ErrLogWrite, err).Error()
	}
	return ""
}
