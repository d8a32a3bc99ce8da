package model

import (
	"path"
	"strings"
)

// Asset is the STAC-agnostic projection of a ProductFile: a URL plus the
// role/media-type classification the stac package needs to build a STAC
// asset entry. Keeping this in model (rather than importing the stac
// package here) avoids a model<->stac import cycle: stac depends on
// model, never the other way around.
type Asset struct {
	Key       string
	URL       string
	MediaType string
	Role      string
	Title     string
}

// mediaTypeByExt maps a handful of PDS3/PDS4 file extensions to the
// media types STAC consumers expect; anything unrecognized falls back to
// "application/octet-stream" rather than failing the item.
var mediaTypeByExt = map[string]string{
	".img":  "application/octet-stream",
	".fit":  "image/fits",
	".fits": "image/fits",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".lbl":  "text/plain",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".htm":  "text/html",
	".html": "text/html",
}

var roleByExt = map[string]string{
	".img":  "data",
	".fit":  "data",
	".fits": "data",
	".jpg":  "thumbnail",
	".jpeg": "thumbnail",
	".png":  "thumbnail",
	".tif":  "overview",
	".tiff": "overview",
	".lbl":  "metadata",
	".xml":  "metadata",
	".htm":  "metadata",
	".html": "metadata",
}

// ToAsset projects one ProductFile into a STAC-ready Asset, inferring
// role and media type from the file extension.
func (f ProductFile) ToAsset() Asset {
	ext := strings.ToLower(path.Ext(f.FileName))
	mt, ok := mediaTypeByExt[ext]
	if !ok {
		mt = "application/octet-stream"
	}
	role, ok := roleByExt[ext]
	if !ok {
		role = "data"
	}
	key := strings.TrimPrefix(ext, ".")
	if key == "" {
		key = "data"
	}
	return Asset{
		Key:       key,
		URL:       f.URL,
		MediaType: mt,
		Role:      role,
		Title:     f.FileName,
	}
}

// Assets projects every ProductFile attached to the record into STAC
// assets, one per file.
func (r Record) Assets() []Asset {
	assets := make([]Asset, 0, len(r.Files))
	for _, f := range r.Files {
		assets = append(assets, f.ToAsset())
	}
	return assets
}

// GeometryPolygon returns a closed ring (5 points, first == last) tracing
// the record's footprint rectangle -- the minimal valid GeoJSON polygon
// a bounding box implies. PDS ODE doesn't ship a richer footprint for
// most products, so the rectangle is the right level of fidelity here.
func (r Record) GeometryPolygon() [][2]float64 {
	w, s, e, n := r.WestLon, r.MinLat, r.EastLon, r.MaxLat
	return [][2]float64{
		{w, s}, {e, s}, {e, n}, {w, n}, {w, s},
	}
}
