package model

import (
	"github.com/pkg/errors"
)

// STACAsset is one downloadable file attached to a STAC item, projected
// from a ProductFile.
type STACAsset struct {
	Href  string   `json:"href"`
	Title string   `json:"title,omitempty"`
	Type  string   `json:"type,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// STACGeometry is a GeoJSON geometry object, populated here as a Polygon
// tracing a record's footprint rectangle.
type STACGeometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// STACItem is the minimal STAC 1.0 Item projection of one record: the
// fields the transformer needs to write items/<id>.json, not a full
// pystac-equivalent object model -- there is no properties/links/assets
// validation here.
type STACItem struct {
	ID         string               `json:"id"`
	Collection string               `json:"collection"`
	Geometry   STACGeometry         `json:"geometry"`
	BBox       [4]float64           `json:"bbox"`
	DateTime   string               `json:"datetime"`
	Properties map[string]any       `json:"properties"`
	Assets     map[string]STACAsset `json:"assets,omitempty"`
}

// ToSTACItem projects a record into a STAC item. cd supplies the collection id;
// the ssys:targets extension value is the record's own target name.
func (r Record) ToSTACItem(cd CollectionDescriptor) (STACItem, error) {
	dt := r.UTCStartTime
	if dt == "" {
		dt = r.ProductCreationTime
	}
	if dt == "" {
		return STACItem{}, errors.Errorf("record %s has neither UTC_start_time nor Product_creation_time", r.ODEID)
	}

	props := map[string]any{
		"pt":           r.PT,
		"Data_Set_Id":  r.DataSetID,
		"ihid":         r.IHID,
		"iid":          r.IID,
		"ssys:targets": []string{r.TargetName},
	}
	if r.UTCStopTime != "" {
		props["UTC_stop_time"] = r.UTCStopTime
	}

	assets := make(map[string]STACAsset, len(r.Files))
	for _, f := range r.Files {
		a := f.ToAsset()
		assets[a.Key] = STACAsset{
			Href:  a.URL,
			Title: a.Title,
			Type:  a.MediaType,
			Roles: []string{a.Role},
		}
	}

	ring := r.GeometryPolygon()
	geom := STACGeometry{Type: "Polygon", Coordinates: [][][2]float64{ring}}

	return STACItem{
		ID:         r.ODEID,
		Collection: cd.CanonicalCollectionID(),
		Geometry:   geom,
		BBox:       r.BoundingBox(),
		DateTime:   dt,
		Properties: props,
		Assets:     assets,
	}, nil
}

// STACCatalogProps is the set of extra properties a body/mission/
// platform/instrument catalog node carries.
type STACCatalogProps struct {
	Title       string
	Description string
	Extra       map[string]any
}

// ToSTACCatalogProps projects the discovery-time fields of a
// CollectionDescriptor into the properties of its body/mission/platform/
// instrument ancestor catalog nodes. It is a placeholder until
// transform_pds3 overwrites each node with the richer properties parsed
// from the PDS3 catalog objects themselves.
func (c CollectionDescriptor) ToSTACCatalogProps() map[string]STACCatalogProps {
	return map[string]STACCatalogProps{
		c.CanonicalBodyID(): {
			Title: c.ODEMetaDB,
		},
		c.CanonicalMissionID(): {
			Title: c.IHName,
		},
		c.CanonicalPlatformID(): {
			Title: c.IHName,
			Extra: map[string]any{"plateform": c.IHID},
		},
		c.CanonicalInstrumentID(): {
			Title: c.IName,
		},
	}
}
