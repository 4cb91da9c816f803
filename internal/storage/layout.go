// Package storage implements the uploads tree: root/project/discipline/phase/filename,
// with timestamp-suffixed versions of superseded files.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
)

// VersionLayout is the timestamp embedded into superseded file names.
const VersionLayout = "20060102_150405"

const (
	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644

	tmpPrefix = ".dk-upload-"
)

// Layout owns one storage root.
type Layout struct {
	root string
	now  func() time.Time

	// mu serializes uploads so a versioning rename and the following write
	// are never interleaved with another upload.
	mu sync.Mutex
}

// Option customizes a Layout.
type Option func(*Layout)

// WithClock overrides the clock used for version suffixes.
func WithClock(now func() time.Time) Option {
	return func(l *Layout) { l.now = now }
}

// New creates the root directory if needed.
func New(root string, opts ...Option) (*Layout, error) {
	if root == "" {
		return nil, errors.New("storage: empty root")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrStorageWrite, err)
	}
	l := &Layout{root: filepath.Clean(root), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Root returns the storage root.
func (l *Layout) Root() string { return l.root }

// ValidSegment reports whether s can be used as one path component.
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.TrimSpace(s) != s {
		return false
	}
	return !strings.ContainsAny(s, `/\`+"\x00")
}

func checkSegments(segs ...string) error {
	for _, s := range segs {
		if !ValidSegment(s) {
			return fmt.Errorf("%w: %q", errs.ErrInvalidPath, s)
		}
	}
	return nil
}

// ResolvePath maps (project, discipline, phase) to root/project/discipline/phase,
// creating missing directories. Calling it again is a no-op.
func (l *Layout) ResolvePath(project, discipline, phase string) (string, error) {
	if err := checkSegments(project, discipline, phase); err != nil {
		return "", err
	}
	dir := filepath.Join(l.root, project, discipline, phase)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrStorageWrite, err)
	}
	return dir, nil
}

// VersionedName inserts _v<YYYYMMDD_HHMMSS> before the extension of path.
func VersionedName(path string, at time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_v" + at.Format(VersionLayout) + ext
}

// Admitted reports where an upload landed.
type Admitted struct {
	Path string
	// Superseded is the versioned name the previous content was moved to; empty
	// when the canonical name was free.
	Superseded string
	Size       int64
}

// AdmitUpload writes r to path. An existing file at path is first renamed to its
// versioned name; a versioned name written within the same second is overwritten.
func (l *Layout) AdmitUpload(path string, r io.Reader) (Admitted, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return Admitted{}, fmt.Errorf("%w: %w", errs.ErrStorageWrite, err)
	}
	tmpName := tmp.Name()
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, filePerm)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return Admitted{}, fmt.Errorf("%w: %w", errs.ErrStorageWrite, err)
	}

	out := Admitted{Path: path, Size: n}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		_ = os.Remove(tmpName)
		return Admitted{}, fmt.Errorf("%w: %s is a directory", errs.ErrStorageWrite, path)
	case err == nil:
		out.Superseded = VersionedName(path, l.now())
		if err := os.Rename(path, out.Superseded); err != nil {
			_ = os.Remove(tmpName)
			return Admitted{}, fmt.Errorf("%w: %w", errs.ErrStorageWrite, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		_ = os.Remove(tmpName)
		return Admitted{}, fmt.Errorf("%w: %w", errs.ErrStorageWrite, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return Admitted{}, fmt.Errorf("%w: %w", errs.ErrStorageWrite, err)
	}
	return out, nil
}

// Store resolves the directory for loc and admits r under loc.Filename.
func (l *Layout) Store(loc model.FileLocation, r io.Reader) (Admitted, error) {
	if err := checkSegments(loc.Filename); err != nil {
		return Admitted{}, err
	}
	if isTemp(loc.Filename) {
		return Admitted{}, fmt.Errorf("%w: reserved name %q", errs.ErrInvalidPath, loc.Filename)
	}
	dir, err := l.ResolvePath(loc.Project, loc.Discipline, loc.Phase)
	if err != nil {
		return Admitted{}, err
	}
	return l.AdmitUpload(filepath.Join(dir, loc.Filename), r)
}

// Open returns the stored file at loc for reading.
func (l *Layout) Open(loc model.FileLocation) (*os.File, model.StoredFile, error) {
	if err := checkSegments(loc.Project, loc.Discipline, loc.Phase, loc.Filename); err != nil {
		return nil, model.StoredFile{}, err
	}
	path := filepath.Join(l.root, loc.Project, loc.Discipline, loc.Phase, loc.Filename)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.StoredFile{}, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
		}
		return nil, model.StoredFile{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, model.StoredFile{}, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, model.StoredFile{}, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
	}
	return f, describe(loc, path, info), nil
}

// KindOf classifies a filename for previews.
func KindOf(name string) model.FileKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return model.KindPDF
	case ".jpg", ".jpeg", ".png":
		return model.KindImage
	default:
		return model.KindOther
	}
}

func describe(loc model.FileLocation, path string, info fs.FileInfo) model.StoredFile {
	return model.StoredFile{
		FileLocation: loc,
		Path:         path,
		Kind:         KindOf(loc.Filename),
		Size:         info.Size(),
		ModTime:      info.ModTime(),
	}
}

func isTemp(name string) bool { return strings.HasPrefix(name, tmpPrefix) }
