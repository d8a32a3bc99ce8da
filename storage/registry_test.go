package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdssp/pdscrawler/model"
)

func testDescriptor(datasetID string) model.CollectionDescriptor {
	return model.CollectionDescriptor{
		IHID:           "MGS",
		IID:            "MOLA",
		PT:             "PEDR",
		DataSetID:      datasetID,
		NumberProducts: 42,
	}
}

func TestJSONRegistryPutGetList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	r, err := OpenJSONRegistry(path)
	require.NoError(t, err)

	fp := model.NewFingerprint("mars", "mgs", "mgs", "mola", "ds1")
	cd := testDescriptor("DS1")
	require.NoError(t, r.Put(fp, cd))

	got, ok, err := r.Get(fp)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "DS1", got.DataSetID)
	require.NoError(t, r.Close())

	r2, err := OpenJSONRegistry(path)
	require.NoError(t, err)
	defer r2.Close()

	all, err := r2.List(nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "DS1", all[0].DataSetID)
}

func TestJSONRegistryListFilter(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenJSONRegistry(filepath.Join(dir, "registry.json"))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Put(model.NewFingerprint("mars", "mgs", "mgs", "mola", "ds1"), testDescriptor("DS1")))
	require.NoError(t, r.Put(model.NewFingerprint("moon", "apollo", "apollo", "cam", "ds2"), testDescriptor("DS2")))

	onlyDS2, err := r.List(func(cd model.CollectionDescriptor) bool { return cd.DataSetID == "DS2" })
	require.NoError(t, err)
	require.Len(t, onlyDS2, 1)
	require.Equal(t, "DS2", onlyDS2[0].DataSetID)
}

func TestJSONRegistryLockReleasedOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	r, err := OpenJSONRegistry(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// The lock must be free again once the first handle closes.
	r2, err := OpenJSONRegistry(path)
	require.NoError(t, err)
	require.NoError(t, r2.Close())
}
