package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSTACItemSetsGeometryAndExtensionBasedAssets(t *testing.T) {
	cd := CollectionDescriptor{
		ODEMetaDB: "mars",
		IHID:      "MGS",
		IID:       "MOLA",
		PT:        "PEDR",
		DataSetID: "MGS-M-MOLA-3-PEDR-L1A-V1.0",
	}
	r := Record{
		ODEID:        "1",
		PT:           "PEDR",
		TargetName:   "MARS",
		WestLon:      10,
		EastLon:      20,
		MinLat:       -5,
		MaxLat:       5,
		UTCStartTime: "2001-01-01T00:00:00Z",
		Files: []ProductFile{
			{FileName: "data.img", URL: "http://x/data.img", Type: "RDR"},
			{FileName: "browse.jpg", URL: "http://x/browse.jpg", Type: "BROWSE"},
		},
	}

	item, err := r.ToSTACItem(cd)
	require.NoError(t, err)

	assert.Equal(t, "Polygon", item.Geometry.Type)
	require.Len(t, item.Geometry.Coordinates, 1)
	ring := item.Geometry.Coordinates[0]
	require.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[len(ring)-1], "the ring must be closed")
	assert.Equal(t, [2]float64{10, -5}, ring[0])
	assert.Equal(t, [2]float64{20, 5}, ring[2])

	imgAsset, ok := item.Assets["img"]
	require.True(t, ok, "assets must be keyed by extension, not upstream Type")
	assert.Equal(t, "data", imgAsset.Roles[0], "role must be inferred from extension, not the ODE Type field")
	assert.Equal(t, "application/octet-stream", imgAsset.Type)

	jpgAsset, ok := item.Assets["jpg"]
	require.True(t, ok)
	assert.Equal(t, "thumbnail", jpgAsset.Roles[0])
	assert.Equal(t, "image/jpeg", jpgAsset.Type)
}
