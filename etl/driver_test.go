package etl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdssp/pdscrawler/fetch"
	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/storage"
)

const driverPageResponse = `{
  "ODEResults": {
    "Count": "1",
    "Products": {
      "Product": {"ode_id": "1", "Data_Set_Id": "MGS-M-MOLA-3-PEDR-L1A-V1.0", "PDSVolume_Id": "MGSM_1001",
        "Westernmost_longitude": 10, "Easternmost_longitude": 20, "Minimum_latitude": -5, "Maximum_latitude": 5,
        "UTC_start_time": "2001-01-01T00:00:00Z"}
    }
  }
}`

func newTestDriver(t *testing.T) (*Driver, model.CollectionDescriptor) {
	dir := t.TempDir()
	files, err := storage.NewFileStore(filepath.Join(dir, "target"))
	require.NoError(t, err)
	reg, err := storage.OpenJSONRegistry(filepath.Join(dir, "registry.json"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	cd := model.CollectionDescriptor{
		ODEMetaDB:      "mars",
		IHID:           "MGS",
		IHName:         "Mars Global Surveyor",
		IID:            "MOLA",
		IName:          "Mars Orbiter Laser Altimeter",
		PT:             "PEDR",
		DataSetID:      "MGS-M-MOLA-3-PEDR-L1A-V1.0",
		NumberProducts: 1,
	}
	require.NoError(t, reg.Put(cd.Fingerprint(), cd))

	d := NewDriver(files, reg, fetch.NewClient(), nil)
	d.Records = d.Records.WithPageSize(1)
	return d, cd
}

func TestRunExtractRecordsPersistsReportAndPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(driverPageResponse))
	}))
	defer srv.Close()

	d, cd := newTestDriver(t)
	d.Records = d.Records.WithEndpoint(srv.URL + "?")

	report, err := d.Run(context.Background(), PhaseExtractRecords, Selection{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, cd.DataSetID, report.Results[0].DataSetID)
	assert.Equal(t, 1, report.Results[0].Count)
	assert.Empty(t, report.Results[0].Err)

	data, err := os.ReadFile(filepath.Join(d.Files.RootDir(), "report_extract_records.json"))
	require.NoError(t, err)
	var persisted Report
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, report.RunID, persisted.RunID)
	assert.Equal(t, PhaseExtractRecords, persisted.Phase)
}

func TestRunExtractPDS3WithoutCachedRecordsFails(t *testing.T) {
	d, cd := newTestDriver(t)

	report, err := d.Run(context.Background(), PhaseExtractPDS3, Selection{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.NotEmpty(t, report.Results[0].Err, "extract_pds3 must fail without a cached record page to read the volume id from")

	reportTxt := filepath.Join(d.Files.STACDir(cd.Fingerprint()), "report.txt")
	contents, err := os.ReadFile(reportTxt)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "extract_pds3")
}

func TestRunTransformRecordsBuildsItemsFromCachedPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(driverPageResponse))
	}))
	defer srv.Close()

	d, cd := newTestDriver(t)
	d.Records = d.Records.WithEndpoint(srv.URL + "?")
	_, err := d.Run(context.Background(), PhaseExtractRecords, Selection{})
	require.NoError(t, err)

	report, err := d.Run(context.Background(), PhaseTransformRecords, Selection{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Results[0].Count)
	assert.Empty(t, report.Results[0].Err)

	items, err := os.ReadDir(filepath.Join(d.Files.STACDir(cd.Fingerprint()), "items"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCheckExtractReportsMissingPages(t *testing.T) {
	d, cd := newTestDriver(t)
	d.Records = d.Records.WithPageSize(1)

	cd2 := cd
	cd2.DataSetID = "MGS-M-MOLA-3-PEDR-L1A-V2.0"
	cd2.NumberProducts = 3
	require.NoError(t, d.Registry.Put(cd2.Fingerprint(), cd2))

	results, err := d.CheckExtract(Selection{}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]CheckResult{}
	for _, r := range results {
		byID[r.DataSetID] = r
	}
	assert.Len(t, byID[cd.DataSetID].MissingPages, 1)
	assert.Len(t, byID[cd2.DataSetID].MissingPages, 3)
}
