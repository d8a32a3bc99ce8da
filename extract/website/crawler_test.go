package website

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdssp/pdscrawler/fetch"
	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/storage"
)

const volumeIndexHTML = `<html><body>
<table>
<tr><td><a href="/vol1/catalog/mission.cat">MISSION.CAT</a></td></tr>
<tr><td><a href="/vol1/catalog/host.cat">HOST.CAT</a></td></tr>
<tr><td><a href="/vol1/catalog/dsmap.cat">DSMAP.CAT</a></td></tr>
<tr><td><a href="/vol1/catalog/dup_mission.cat">mission.cat</a></td></tr>
<tr><td><a href="/vol1/browse/">BROWSE</a></td></tr>
</table>
</body></html>`

func TestListCatalogObjectsKeepsFirstPerKindCaseInsensitive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(volumeIndexHTML))
	}))
	defer srv.Close()

	c := NewCrawler(fetch.NewClient())
	links, err := c.ListCatalogObjects(context.Background(), srv.URL)
	require.NoError(t, err)

	var missionCount int
	var byKind = map[string]string{}
	for _, l := range links {
		byKind[l.Kind] = l.Name
		if l.Kind == "MISSION" {
			missionCount++
		}
	}
	assert.Equal(t, 1, missionCount, "first MISSION match must win, the duplicate must be ignored")
	assert.Equal(t, "MISSION.CAT", byKind["MISSION"])
	assert.Equal(t, "HOST.CAT", byKind["INSTRUMENT_HOST"])
	assert.Equal(t, "DSMAP.CAT", byKind["DATA_SET_MAP_PROJECTION"])
	assert.NotContains(t, byKind, "BROWSE", "unrecognized anchors must be ignored")
}

func TestFetchWritesEachLinkIntoPDS3Dir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OBJECT = MISSION\nEND_OBJECT = MISSION\nEND\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	files, err := storage.NewFileStore(filepath.Join(dir, "target"))
	require.NoError(t, err)

	c := NewCrawler(fetch.NewClient())
	fp := model.NewFingerprint("mars", "mgs", "mgs", "mola", "ds1")
	links := []CatalogLink{{Kind: "MISSION", Name: "mission.cat", URL: srv.URL}}

	fetched, err := c.Fetch(context.Background(), links, fp, files)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)

	pds3Files, err := files.ListPDS3(fp)
	require.NoError(t, err)
	require.Len(t, pds3Files, 1)
	assert.Equal(t, "MISSION", pds3Files[0].Kind)
}
