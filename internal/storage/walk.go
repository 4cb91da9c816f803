package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/doc-keeper/internal/model"
)

// subdirs lists directory names under dir in lexical order. A missing dir is empty.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Projects lists the project directories.
func (l *Layout) Projects() ([]string, error) { return subdirs(l.root) }

// Tree walks project/discipline/phase directories and lists their files, all sorted.
// Non-directories above the phase level are skipped.
func (l *Layout) Tree() (model.Tree, error) {
	var tree model.Tree
	projects, err := subdirs(l.root)
	if err != nil {
		return tree, err
	}
	for _, p := range projects {
		proj := model.Project{Name: p}
		discs, err := subdirs(filepath.Join(l.root, p))
		if err != nil {
			return tree, err
		}
		for _, d := range discs {
			disc := model.Discipline{Name: d}
			phases, err := subdirs(filepath.Join(l.root, p, d))
			if err != nil {
				return tree, err
			}
			for _, ph := range phases {
				files, err := l.files(model.FileLocation{Project: p, Discipline: d, Phase: ph})
				if err != nil {
					return tree, err
				}
				disc.Phases = append(disc.Phases, model.Phase{Name: ph, Files: files})
			}
			proj.Disciplines = append(proj.Disciplines, disc)
		}
		tree.Projects = append(tree.Projects, proj)
	}
	return tree, nil
}

func (l *Layout) files(at model.FileLocation) ([]model.StoredFile, error) {
	dir := filepath.Join(l.root, at.Project, at.Discipline, at.Phase)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := []model.StoredFile{}
	for _, e := range entries {
		if e.IsDir() || isTemp(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		loc := at
		loc.Filename = e.Name()
		out = append(out, describe(loc, filepath.Join(dir, e.Name()), info))
	}
	return out, nil
}

// Search returns every file below the root whose name contains keyword,
// case-insensitively, in lexical walk order. Directory names never match.
func (l *Layout) Search(keyword string) ([]model.StoredFile, error) {
	needle := strings.ToLower(keyword)
	if needle == "" {
		return []model.StoredFile{}, nil
	}
	out := []model.StoredFile{}
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || isTemp(d.Name()) {
			return nil
		}
		if !strings.Contains(strings.ToLower(d.Name()), needle) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		out = append(out, describe(l.locate(path), path, info))
		return nil
	})
	return out, err
}

// locate splits a path below the root into its hierarchy; files that do not sit
// exactly at project/discipline/phase depth keep only their filename.
func (l *Layout) locate(path string) model.FileLocation {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return model.FileLocation{Filename: filepath.Base(path)}
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 {
		return model.FileLocation{Filename: parts[len(parts)-1]}
	}
	return model.FileLocation{Project: parts[0], Discipline: parts[1], Phase: parts[2], Filename: parts[3]}
}
