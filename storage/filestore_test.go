package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdssp/pdscrawler/model"
)

func TestWritePageUsesLiteralPageFilenames(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFileStore(dir)
	require.NoError(t, err)

	fp := model.NewFingerprint("mars", "mgs", "mgs", "mola", "mgs-m-mola-3-pedr-l1a-v1.0")

	require.NoError(t, files.WritePage(fp, 0, []byte(`{}`)))
	require.NoError(t, files.WritePage(fp, 1, []byte(`{}`)))

	recordsDir := files.recordsDir(fp)
	_, err = os.Stat(filepath.Join(recordsDir, "page_000.json"))
	require.NoError(t, err, "sample=2 must produce records/page_000.json")
	_, err = os.Stat(filepath.Join(recordsDir, "page_001.json"))
	require.NoError(t, err, "sample=2 must produce records/page_001.json")

	entries, err := os.ReadDir(recordsDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"page_000.json", "page_001.json"}, names)
}

func TestWritePageRerunDoesNotRewriteExistingPages(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFileStore(dir)
	require.NoError(t, err)

	fp := model.NewFingerprint("mars", "mgs", "mgs", "mola", "mgs-m-mola-3-pedr-l1a-v1.0")

	require.NoError(t, files.WritePage(fp, 0, []byte(`{}`)))
	require.NoError(t, files.WritePage(fp, 1, []byte(`{}`)))

	path0 := filepath.Join(files.recordsDir(fp), "page_000.json")
	before, err := os.Stat(path0)
	require.NoError(t, err)

	require.NoError(t, files.WritePage(fp, 2, []byte(`{}`)))
	require.NoError(t, files.WritePage(fp, 3, []byte(`{}`)))
	require.NoError(t, files.WritePage(fp, 4, []byte(`{}`)))

	after, err := os.Stat(path0)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "the original two pages must not be rewritten")

	entries, err := os.ReadDir(files.recordsDir(fp))
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestPageIndexFromFilenameRoundTrips(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFileStore(dir)
	require.NoError(t, err)

	fp := model.NewFingerprint("mars", "mgs", "mgs", "mola", "ds1")
	require.NoError(t, files.WritePage(fp, 7, []byte(`{}`)))

	pages, err := files.ListPages(fp)
	require.NoError(t, err)
	require.Equal(t, []int{7}, pages)

	idx, err := PageIndexFromFilename("page_007.json")
	require.NoError(t, err)
	assert.Equal(t, 7, idx)

	_, err = PageIndexFromFilename("not-a-page.json")
	assert.Error(t, err)
}
