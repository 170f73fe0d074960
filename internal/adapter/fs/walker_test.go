package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestWalker_Walk(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "B.pdf")
	touch(t, root, "A.pdf")
	touch(t, root, "notes.txt")
	touch(t, root, "sub/C.PDF")
	touch(t, root, "archive/old.pdf")

	w := NewWalker([]string{"**/*.pdf"}, []string{"archive/**"})
	files, err := w.Walk(root)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, DocumentName(f.Path))
		assert.True(t, filepath.IsAbs(f.Path))
		assert.Equal(t, int64(1), f.Size)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestWalker_DefaultIncludes(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "manual.pdf")
	touch(t, root, "readme.md")

	files, err := NewWalker(nil, nil).Walk(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "manual", DocumentName(files[0].Path))
}

func TestWalker_MissingRoot(t *testing.T) {
	_, err := NewWalker(nil, nil).Walk(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWalker_Matches(t *testing.T) {
	w := NewWalker([]string{"**/*.pdf"}, []string{"**/~$*"})
	assert.True(t, w.Matches("Manual.PDF"))
	assert.True(t, w.Matches("sub/dir/x.pdf"))
	assert.False(t, w.Matches("~$lock.pdf"))
	assert.False(t, w.Matches("x.docx"))
}

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "Ficha MMA", DocumentName("/pdfs/Ficha MMA.pdf"))
	assert.Equal(t, "archive.tar", DocumentName("archive.tar.gz"))
	assert.Equal(t, "noext", DocumentName("noext"))
}
