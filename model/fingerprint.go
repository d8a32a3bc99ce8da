// Package model holds the typed representations of ODE collections and
// records, the collection fingerprint that keys every store, and the
// projections that turn those records into STAC-ready properties.
//
// The shapes here mirror the PDS ODE web service's JSON envelope closely
// enough that round-tripping a response through Go structs and back
// produces an equivalent document; see pds3 for the separate, unrelated
// PDS3 catalog object model.
package model

import (
	"strings"
)

// Fingerprint is the minimal tuple that uniquely identifies a PDS data
// set: (target, mission, host, instrument, dataset_id). It is immutable
// once created and every storage key in the system derives from it.
type Fingerprint struct {
	Target     string
	Mission    string
	Host       string
	Instrument string
	DataSetID  string
}

// NewFingerprint builds a Fingerprint from the raw ODE collection fields.
// Target is lower-cased for use as a directory/path component; callers
// that need the original casing should keep the CollectionDescriptor
// around.
func NewFingerprint(target, mission, host, instrument, datasetID string) Fingerprint {
	return Fingerprint{
		Target:     strings.ToLower(target),
		Mission:    strings.ToLower(mission),
		Host:       strings.ToLower(host),
		Instrument: strings.ToLower(instrument),
		DataSetID:  strings.ToLower(datasetID),
	}
}

// Path returns the fingerprint's on-disk path components, in the order
// the file store lays them out: target/mission/host/instrument/dataset.
func (f Fingerprint) Path() []string {
	return []string{f.Target, f.Mission, f.Host, f.Instrument, f.DataSetID}
}

// String renders the fingerprint as a single slash-joined key, suitable
// for use as a registry-store lookup key or a log field.
func (f Fingerprint) String() string {
	return strings.Join(f.Path(), "/")
}
