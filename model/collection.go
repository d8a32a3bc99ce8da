package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CollectionDescriptor is the Go projection of one ODE "IIPTSet" entry:
// metadata about a collection as reported by the discovery endpoint.
//
// Field names intentionally keep the ODE wire vocabulary (IHID, IID, PT,
// DataSetId, ...) rather than being renamed to something more Go-ish,
// because they are also the query-parameter names used to build record
// URLs later on; renaming them would just add a translation table.
type CollectionDescriptor struct {
	ODEMetaDB      string `json:"ODEMetaDB"`
	IHID           string `json:"IHID"`
	IHName         string `json:"IHName"`
	IID            string `json:"IID"`
	IName          string `json:"IName"`
	PT             string `json:"PT"`
	PTName         string `json:"PTName"`
	DataSetID      string `json:"DataSetId"`
	NumberProducts int    `json:"NumberProducts"`

	FootprintValid    bool    `json:"-"`
	MinObservationUTC string  `json:"MinObservationTime,omitempty"`
	MaxObservationUTC string  `json:"MaxObservationTime,omitempty"`
	VolumeID          string  `json:"PDSVolume_Id,omitempty"`
	MinOrbit          *int    `json:"MinOrbit,omitempty"`
	MaxOrbit          *int    `json:"MaxOrbit,omitempty"`

	// rawFootprintValid preserves the upstream "T"/"F" string so
	// MarshalJSON re-emits the flag in its original spelling.
	rawFootprintValid string
}

// ode's JSON encodes several boolean-ish fields as free-form strings
// ("T"/"F", "1"/"0", "true"/"false"). footprintTruthy treats any of
// those spellings, case-insensitively, as true.
func footprintTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "t", "1", "true", "y":
		return true
	default:
		return false
	}
}

// ode's JSON wraps most scalar fields in quotes even when they're
// numeric; numberString unwraps that without choking on an empty string.
func numberString(raw json.RawMessage) (int, error) {
	s := string(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// wireCollectionDescriptor matches the shape of one IIPTSet entry as ODE
// actually serializes it, before footprint validity and numeric fields
// are normalized into CollectionDescriptor's Go-native form.
type wireCollectionDescriptor struct {
	ODEMetaDB         string          `json:"ODEMetaDB"`
	IHID              string          `json:"IHID"`
	IHName            string          `json:"IHName"`
	IID               string          `json:"IID"`
	IName             string          `json:"IName"`
	PT                string          `json:"PT"`
	PTName            string          `json:"PTName"`
	DataSetID         string          `json:"DataSetId"`
	NumberProducts    json.RawMessage `json:"NumberProducts"`
	FootprintValid    string          `json:"Footprint_Valid,omitempty"`
	MinObservationUTC string          `json:"MinObservationTime,omitempty"`
	MaxObservationUTC string          `json:"MaxObservationTime,omitempty"`
	VolumeID          string          `json:"PDSVolume_Id,omitempty"`
}

// UnmarshalJSON decodes one IIPTSet entry, normalizing the footprint
// validity flag and the numeric product count.
func (c *CollectionDescriptor) UnmarshalJSON(data []byte) error {
	var w wireCollectionDescriptor
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	n, err := numberString(w.NumberProducts)
	if err != nil {
		return err
	}
	*c = CollectionDescriptor{
		ODEMetaDB:         w.ODEMetaDB,
		IHID:              w.IHID,
		IHName:            w.IHName,
		IID:               w.IID,
		IName:             w.IName,
		PT:                w.PT,
		PTName:            w.PTName,
		DataSetID:         w.DataSetID,
		NumberProducts:    n,
		FootprintValid:    footprintTruthy(w.FootprintValid),
		rawFootprintValid: w.FootprintValid,
		MinObservationUTC: w.MinObservationUTC,
		MaxObservationUTC: w.MaxObservationUTC,
		VolumeID:          w.VolumeID,
	}
	return nil
}

// MarshalJSON re-encodes the descriptor back into the ODE wire shape, so
// a parse/re-serialize round trip decodes back to an equal descriptor.
// NumberProducts is written as a bare number even when upstream quoted
// it, and MinOrbit/MaxOrbit are not written.
func (c CollectionDescriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCollectionDescriptor{
		ODEMetaDB:         c.ODEMetaDB,
		IHID:              c.IHID,
		IHName:            c.IHName,
		IID:               c.IID,
		IName:             c.IName,
		PT:                c.PT,
		PTName:            c.PTName,
		DataSetID:         c.DataSetID,
		NumberProducts:    json.RawMessage(strconv.Itoa(c.NumberProducts)),
		FootprintValid:    c.rawFootprintValid,
		MinObservationUTC: c.MinObservationUTC,
		MaxObservationUTC: c.MaxObservationUTC,
		VolumeID:          c.VolumeID,
	})
}

// Georeferenced reports whether this descriptor should be retained by
// discover: footprint-valid AND product count > 0.
func (c CollectionDescriptor) Georeferenced() bool {
	return c.FootprintValid && c.NumberProducts > 0
}

// Fingerprint derives the collection fingerprint from the descriptor. An
// instrument host belongs to exactly one mission in the ODE archive, but
// ODE's discovery response never names that mission directly -- only the
// PDS3 Mission catalog does, and that isn't fetched until extract_pds3.
// To keep the fingerprint creatable (and immutable) at discovery time, the
// mission segment is seeded from the host id; transform_pds3 later
// derives the STAC mission catalog's canonical id independently, from the
// parsed Mission object's name, without needing to touch the fingerprint.
func (c CollectionDescriptor) Fingerprint() Fingerprint {
	return NewFingerprint(c.ODEMetaDB, c.IHID, c.IHID, c.IID, c.DataSetID)
}

// PageCount returns ceil(NumberProducts / pageSize), the number of pages
// extract_records must fetch to cover this collection.
func (c CollectionDescriptor) PageCount(pageSize int) int {
	if pageSize <= 0 || c.NumberProducts <= 0 {
		return 0
	}
	n := c.NumberProducts / pageSize
	if c.NumberProducts%pageSize != 0 {
		n++
	}
	return n
}
