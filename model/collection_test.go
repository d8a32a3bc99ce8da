package model

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionDescriptorGeoreferenced(t *testing.T) {
	cases := []struct {
		name     string
		valid    string
		count    int
		expected bool
	}{
		{"valid and positive", "T", 10, true},
		{"valid and zero", "T", 0, false},
		{"invalid and positive", "F", 10, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := []byte(`{
				"ODEMetaDB":"MARS","IHID":"MGS","IID":"MOLA","PT":"PEDR",
				"DataSetId":"MGS-M-MOLA-3-PEDR-L1A-V1.0",
				"NumberProducts":"` + strconv.Itoa(tc.count) + `",
				"Footprint_Valid":"` + tc.valid + `"
			}`)
			var d CollectionDescriptor
			require.NoError(t, json.Unmarshal(raw, &d))
			assert.Equal(t, tc.expected, d.Georeferenced())
		})
	}
}

func TestCollectionDescriptorFingerprintAndPageCount(t *testing.T) {
	d := CollectionDescriptor{
		ODEMetaDB:      "Mars",
		IHID:           "MGS",
		IID:            "MOLA",
		DataSetID:      "MGS-M-MOLA-3-PEDR-L1A-V1.0",
		NumberProducts: 1000,
	}
	fp := d.Fingerprint()
	assert.Equal(t, "mars", fp.Target)
	assert.Equal(t, "mgs", fp.Host)
	assert.Equal(t, "mola", fp.Instrument)
	assert.Equal(t, "mgs-m-mola-3-pedr-l1a-v1.0", fp.DataSetID)
	assert.Equal(t, 10, d.PageCount(100))
	assert.Equal(t, 11, d.PageCount(99))
	assert.Equal(t, 0, CollectionDescriptor{}.PageCount(100))
}

func TestCollectionDescriptorRoundTrip(t *testing.T) {
	raw := []byte(`{"ODEMetaDB":"MARS","IHID":"MGS","IHName":"Mars Global Surveyor","IID":"MOLA","IName":"Mars Orbiter Laser Altimeter","PT":"PEDR","PTName":"Precision Experiment Data Record","DataSetId":"MGS-M-MOLA-3-PEDR-L1A-V1.0","NumberProducts":"27","Footprint_Valid":"T"}`)
	var d CollectionDescriptor
	require.NoError(t, json.Unmarshal(raw, &d))

	again, err := json.Marshal(d)
	require.NoError(t, err)

	var d2 CollectionDescriptor
	require.NoError(t, json.Unmarshal(again, &d2))
	assert.Equal(t, d, d2)
}
