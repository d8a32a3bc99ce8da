package model

import "strings"

// canonicalLab is the namespace segment every canonical id is rooted
// under: "urn:pdssp:pds:...".
const canonicalLab = "pds"

// Slugify normalizes a raw PDS identifier into the id form canonical
// STAC ids are built from: path separators become underscores and the
// result is lower-cased.
func Slugify(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "/", "_"))
}

func canonicalID(kind, raw string) string {
	return "urn:pdssp:" + canonicalLab + ":" + kind + ":" + Slugify(raw)
}

// CanonicalBodyID returns the STAC id of the target body catalog node
// (the tree's top level below the root).
func (c CollectionDescriptor) CanonicalBodyID() string {
	return canonicalID("body", c.ODEMetaDB)
}

// CanonicalMissionID returns the STAC id of the mission catalog node. At
// discovery time there is no parsed Mission catalog object yet, so this
// is keyed off the instrument host id, matching the fingerprint's own
// provisional mission segment (see Fingerprint). transform_pds3 later
// calls CanonicalMissionIDFromAlias once the Mission catalog's own alias
// name is known, and that id -- not this one -- is what the mission
// catalog node is actually saved under.
func (c CollectionDescriptor) CanonicalMissionID() string {
	return canonicalID("mission", c.IHID)
}

// CanonicalMissionIDFromAlias returns the STAC id of a mission catalog
// node keyed by the Mission catalog object's own alias name.
func CanonicalMissionIDFromAlias(missionAlias string) string {
	return canonicalID("mission", missionAlias)
}

// CanonicalPlatformID returns the STAC id of the instrument-host
// ("platform") catalog node.
func (c CollectionDescriptor) CanonicalPlatformID() string {
	return canonicalID("plateform", c.IHID)
}

// CanonicalInstrumentID returns the STAC id of the instrument catalog node.
func (c CollectionDescriptor) CanonicalInstrumentID() string {
	return canonicalID("instru", c.IID)
}

// CanonicalCollectionID returns the STAC id of the collection node.
func (c CollectionDescriptor) CanonicalCollectionID() string {
	return canonicalID("collection", c.DataSetID)
}

// CanonicalCollectionID returns the STAC id of the collection a record
// belongs to, matching CollectionDescriptor's own derivation so items and
// their parent collection always agree on the id.
func (r Record) CanonicalCollectionID() string {
	return canonicalID("collection", r.DataSetID)
}
