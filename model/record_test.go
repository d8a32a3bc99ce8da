package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordPageSingleProduct(t *testing.T) {
	raw := []byte(`{"ODEResults":{"Count":"1","Products":{"Product":{
		"ode_id":"1","pdsid":"P1","Target_name":"MARS",
		"Westernmost_longitude":"10.0","Easternmost_longitude":"20.0",
		"Minimum_latitude":"-5.0","Maximum_latitude":"5.0"
	}}}}`)
	page, err := DecodeRecordPage(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Records, 1)
	assert.True(t, page.Complete())
}

func TestDecodeRecordPageArrayProducts(t *testing.T) {
	raw := []byte(`{"ODEResults":{"Count":"2","Products":{"Product":[
		{"ode_id":"1"},
		{"ode_id":"2"}
	]}}}`)
	page, err := DecodeRecordPage(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)
	require.Len(t, page.Records, 2)
	assert.True(t, page.Complete())
}

func TestDecodeRecordPageZeroCount(t *testing.T) {
	raw := []byte(`{"ODEResults":{"Count":"0","Products":""}}`)
	page, err := DecodeRecordPage(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Count)
	assert.Empty(t, page.Records)
	assert.True(t, page.Complete())
}

func TestRecordAssetsInferRoleAndMediaType(t *testing.T) {
	r := Record{Files: []ProductFile{
		{FileName: "browse.jpg", URL: "http://x/browse.jpg"},
		{FileName: "data.img", URL: "http://x/data.img"},
		{FileName: "label.lbl", URL: "http://x/label.lbl"},
	}}
	assets := r.Assets()
	require.Len(t, assets, 3)
	assert.Equal(t, "thumbnail", assets[0].Role)
	assert.Equal(t, "image/jpeg", assets[0].MediaType)
	assert.Equal(t, "data", assets[1].Role)
	assert.Equal(t, "metadata", assets[2].Role)
}

func TestRecordGeometryPolygonIsClosed(t *testing.T) {
	r := Record{WestLon: 1, EastLon: 2, MinLat: 3, MaxLat: 4}
	poly := r.GeometryPolygon()
	require.Len(t, poly, 5)
	assert.Equal(t, poly[0], poly[len(poly)-1])
}
