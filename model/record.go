package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ProductFile is one downloadable asset attached to a record: a browse
// image, a label, the data file itself.
type ProductFile struct {
	FileName     string `json:"FileName"`
	Type         string `json:"Type,omitempty"`
	URL          string `json:"URL,omitempty"`
	Description  string `json:"Description,omitempty"`
	KBytes       float64 `json:"KBytes,omitempty"`
	CreationDate string `json:"Creation_date,omitempty"`
	Checksum     string `json:"Checksum,omitempty"`
}

// Record is a single observational product within a collection:
// identifier, acquisition time window, footprint, and its product files.
type Record struct {
	ODEID              string        `json:"ode_id"`
	PDSID               string        `json:"pdsid,omitempty"`
	IHID                string        `json:"ihid,omitempty"`
	IID                 string        `json:"iid,omitempty"`
	PT                  string        `json:"pt,omitempty"`
	DataSetID           string        `json:"Data_Set_Id,omitempty"`
	PDSVolumeID         string        `json:"PDSVolume_Id,omitempty"`
	TargetName          string        `json:"Target_name,omitempty"`
	WestLon             float64       `json:"Westernmost_longitude"`
	EastLon             float64       `json:"Easternmost_longitude"`
	MinLat              float64       `json:"Minimum_latitude"`
	MaxLat              float64       `json:"Maximum_latitude"`
	UTCStartTime        string        `json:"UTC_start_time,omitempty"`
	UTCStopTime         string        `json:"UTC_stop_time,omitempty"`
	ProductCreationTime string        `json:"Product_creation_time,omitempty"`
	Files               []ProductFile `json:"Product_files,omitempty"`
}

// BoundingBox returns the [west, south, east, north] extent used as the
// STAC item bbox / geometry polygon envelope.
func (r Record) BoundingBox() [4]float64 {
	return [4]float64{r.WestLon, r.MinLat, r.EastLon, r.MaxLat}
}

// RecordPage is the decoded ODE "records" response envelope for one page,
// the unit of on-disk caching and idempotent retry. Count is the header's
// declared record count and must match len(Records) for the page to be
// considered complete.
type RecordPage struct {
	Count   int      `json:"count"`
	Records []Record `json:"records"`
}

// odeRecordsEnvelope mirrors the literal ODE wire shape: a string count
// and a Products field that is a single object when there's one result
// and an array otherwise.
type odeRecordsEnvelope struct {
	ODEResults struct {
		Count    string          `json:"Count"`
		Products json.RawMessage `json:"Products"`
	} `json:"ODEResults"`
}

// DecodeRecordPage parses one raw ODE records response into a RecordPage.
// A "Count": "0" response decodes to an empty, zero-count page rather
// than an error -- that's a legitimately complete page with no products.
func DecodeRecordPage(raw []byte) (RecordPage, error) {
	var env odeRecordsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return RecordPage{}, errors.Wrap(err, "decoding ODE records envelope")
	}
	count, err := strconv.Atoi(env.ODEResults.Count)
	if err != nil {
		return RecordPage{}, errors.Wrapf(err, "parsing Count %q", env.ODEResults.Count)
	}
	if count == 0 || len(env.ODEResults.Products) == 0 {
		return RecordPage{Count: 0}, nil
	}

	var productField struct {
		Product json.RawMessage `json:"Product"`
	}
	if err := json.Unmarshal(env.ODEResults.Products, &productField); err != nil {
		return RecordPage{}, errors.Wrap(err, "decoding Products.Product")
	}

	records, err := decodeProducts(productField.Product)
	if err != nil {
		return RecordPage{}, err
	}
	return RecordPage{Count: count, Records: records}, nil
}

// decodeProducts handles the "single object vs. array" ambiguity that
// ODE's XML-derived JSON encoder produces: a collection with exactly one
// product in the page serializes Product as an object, not a one-element
// array.
func decodeProducts(raw json.RawMessage) ([]Record, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var recs []Record
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, errors.Wrap(err, "decoding product array")
		}
		return recs, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrap(err, "decoding single product")
	}
	return []Record{rec}, nil
}

// Complete reports whether the page's declared header count matches the
// number of records actually decoded. ExtractRecords does not write a
// page that decodes but fails this check; a page that does not decode as
// a record page is written as fetched.
func (p RecordPage) Complete() bool {
	return p.Count == len(p.Records)
}
