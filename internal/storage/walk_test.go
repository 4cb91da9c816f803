package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/doc-keeper/internal/model"
)

func seed(t *testing.T, l *Layout, files ...string) {
	t.Helper()
	for _, f := range files {
		parts := strings.Split(f, "/")
		require.Len(t, parts, 4, f)
		_, err := l.Store(model.FileLocation{Project: parts[0], Discipline: parts[1], Phase: parts[2], Filename: parts[3]},
			strings.NewReader(f))
		require.NoError(t, err)
	}
}

func TestTree_SortedHierarchy(t *testing.T) {
	l := newLayout(t)
	seed(t, l,
		"ProjB/Elec/Build/z.txt",
		"ProjA/Civil/Design/spec.pdf",
		"ProjA/Civil/Design/b.png",
		"ProjA/Arch/Concept/a.dwg",
	)
	// Stray file at project level is skipped like any non-directory.
	require.NoError(t, os.WriteFile(filepath.Join(l.Root(), "stray.txt"), []byte("x"), 0o644))

	tree, err := l.Tree()
	require.NoError(t, err)
	require.Len(t, tree.Projects, 2)
	require.Equal(t, "ProjA", tree.Projects[0].Name)
	require.Equal(t, "Arch", tree.Projects[0].Disciplines[0].Name)
	require.Equal(t, "Civil", tree.Projects[0].Disciplines[1].Name)

	files := tree.Projects[0].Disciplines[1].Phases[0].Files
	require.Len(t, files, 2)
	require.Equal(t, "b.png", files[0].Filename)
	require.Equal(t, model.KindImage, files[0].Kind)
	require.Equal(t, "spec.pdf", files[1].Filename)
	require.Equal(t, "ProjA", files[1].Project)

	projects, err := l.Projects()
	require.NoError(t, err)
	require.Equal(t, []string{"ProjA", "ProjB"}, projects)
}

func TestTree_EmptyRoot(t *testing.T) {
	l := newLayout(t)
	tree, err := l.Tree()
	require.NoError(t, err)
	require.Empty(t, tree.Projects)
}

func TestSearch_FilenameOnlyCaseInsensitive(t *testing.T) {
	l := newLayout(t)
	seed(t, l,
		"ProjA/Civil/Design/Final_REPORT.pdf",
		"ProjA/Civil/Design/notes.txt",
		"report/Civil/Design/plan.dwg",
		"ProjB/Elec/Build/monthly-report-03.xlsx",
	)
	// Deeper than the hierarchy still counts.
	deep := filepath.Join(l.Root(), "ProjB", "Elec", "Build", "extra")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "old report.doc"), []byte("x"), 0o644))

	got, err := l.Search("report")
	require.NoError(t, err)

	var names []string
	for _, f := range got {
		names = append(names, f.Filename)
	}
	require.Equal(t, []string{"Final_REPORT.pdf", "old report.doc", "monthly-report-03.xlsx"}, names)
	require.Equal(t, "ProjA", got[0].Project)
	require.Empty(t, got[1].Project, "off-hierarchy file has no location")

	none, err := l.Search("")
	require.NoError(t, err)
	require.Empty(t, none)
}
