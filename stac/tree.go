// Package stac builds the output STAC 1.0 tree -- root catalog, body,
// mission, platform, and instrument catalogs shared across collections,
// plus each collection's own collection.json and item documents -- from
// the cached ODE record pages and parsed PDS3 catalog objects. It is
// grounded on original_source/transformer/pds_to_stac.py's
// StacRecordsTransformer/StacCatalogTransformer, with pystac's in-memory
// object graph replaced by small JSON documents merged on disk: there is
// no Go STAC library in the example pack to reach for instead (see
// DESIGN.md).
package stac

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/pds3"
	"github.com/pdssp/pdscrawler/pkgerr"
	"github.com/pdssp/pdscrawler/storage"
)

// Slugify normalizes a raw identifier the same way every canonical STAC
// id in this system is normalized. It exists in this package, rather
// than only in model, because spec callers reach for a transformer-local
// normalization entry point; it simply delegates to model.Slugify so the
// two layers can never disagree.
func Slugify(s string) string { return model.Slugify(s) }

// CatalogNode is a body/mission/platform/instrument node in the shared
// ancestor tree: title/description plus the set of child ids already
// linked under it.
type CatalogNode struct {
	ID          string         `json:"id"`
	ParentID    string         `json:"parent_id,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Extra       map[string]any `json:"extra_fields,omitempty"`
	Children    []string       `json:"children"`
	// Refined marks that Title/Description came from a parsed PDS3
	// catalog object rather than an ODE descriptor's discovery-time
	// fields, so a later discovery-time upsert can't stomp a richer
	// PDS3-derived value back to the plain ODE one.
	Refined bool `json:"refined,omitempty"`
}

// CollectionNode is one collection's own STAC document: its running
// spatial/temporal extent and the set of item ids already written.
type CollectionNode struct {
	ID          string         `json:"id"`
	ParentID    string         `json:"parent_id"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Extra       map[string]any `json:"extra_fields,omitempty"`
	BBox        [4]float64     `json:"bbox"`
	TimeMin     string         `json:"time_min,omitempty"`
	TimeMax     string         `json:"time_max,omitempty"`
	Items       []string       `json:"items"`
}

// Builder transforms cached records and PDS3 catalog objects into the
// on-disk STAC tree, idempotently: re-running either transform over
// already-written output produces no changes.
type Builder struct {
	files    *storage.FileStore
	registry storage.Registry
}

// NewBuilder builds a Builder writing STAC documents under files,
// resolving a fingerprint's descriptor from registry.
func NewBuilder(files *storage.FileStore, registry storage.Registry) *Builder {
	return &Builder{files: files, registry: registry}
}

func nodeFilename(id string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(id) + ".json"
}

func (b *Builder) catalogNodePath(id string) string {
	return filepath.Join(b.files.RootDir(), "stac_catalog", nodeFilename(id))
}

func loadCatalogNode(path string) (*CatalogNode, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading catalog node %s", path)
	}
	var n CatalogNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, false, errors.Wrapf(err, "decoding catalog node %s", path)
	}
	return &n, true, nil
}

func saveCatalogNode(path string, n *CatalogNode) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding catalog node")
	}
	return storage.AtomicWriteFile(path, data)
}

// upsertCatalogNode loads the node at id (or creates it with the given
// title/description/parent if absent), links it under parentID if it
// isn't already (skipping the no-op when it is -- the idempotence rule),
// and persists it. It returns whether the node was newly created.
//
// authoritative marks a call as carrying a PDS3-parsed title/description
// (from applyCatalogObject) rather than a plain ODE descriptor's
// discovery-time fields (from ensureAncestors). Once a node's Refined
// flag is set by an authoritative call, only another authoritative call
// may overwrite its Title/Description -- otherwise a later
// transform_records pass would stomp a richer PDS3 value back to the
// plain ODE one.
func (b *Builder) upsertCatalogNode(id, parentID, title, description string, extra map[string]any, authoritative bool) (created bool, err error) {
	path := b.catalogNodePath(id)
	node, ok, err := loadCatalogNode(path)
	if err != nil {
		return false, err
	}
	if !ok {
		node = &CatalogNode{ID: id, ParentID: parentID, Title: title, Description: description, Extra: extra}
		created = true
		if authoritative && (title != "" || description != "") {
			node.Refined = true
		}
	} else {
		if authoritative || !node.Refined {
			if title != "" {
				node.Title = title
			}
			if description != "" {
				node.Description = description
			}
			if authoritative && (title != "" || description != "") {
				node.Refined = true
			}
		}
		for k, v := range extra {
			if node.Extra == nil {
				node.Extra = map[string]any{}
			}
			node.Extra[k] = v
		}
	}
	if err := saveCatalogNode(path, node); err != nil {
		return false, err
	}
	if parentID != "" {
		if err := b.linkChild(parentID, id); err != nil {
			return created, err
		}
	}
	return created, nil
}

// linkChild adds childID to parentID's Children list if it isn't already
// present, so relinking an already-linked child is a no-op.
func (b *Builder) linkChild(parentID, childID string) error {
	path := b.catalogNodePath(parentID)
	node, ok, err := loadCatalogNode(path)
	if err != nil {
		return err
	}
	if !ok {
		node = &CatalogNode{ID: parentID}
	}
	for _, c := range node.Children {
		if c == childID {
			return nil
		}
	}
	node.Children = append(node.Children, childID)
	sort.Strings(node.Children)
	return saveCatalogNode(path, node)
}

func (b *Builder) rootCatalogID() string { return "urn:pdssp:pds:root" }

// ensureRoot makes sure the root catalog node exists before any body is
// linked under it.
func (b *Builder) ensureRoot() error {
	path := b.catalogNodePath(b.rootCatalogID())
	if _, ok, err := loadCatalogNode(path); err != nil {
		return err
	} else if ok {
		return nil
	}
	return saveCatalogNode(path, &CatalogNode{ID: b.rootCatalogID(), Title: "PDS3 archive"})
}

func (b *Builder) collectionNodePath(fp model.Fingerprint) string {
	return filepath.Join(b.files.STACDir(fp), "collection.json")
}

func (b *Builder) itemPath(fp model.Fingerprint, itemID string) string {
	return filepath.Join(b.files.STACDir(fp), "items", nodeFilename(itemID))
}

func loadCollectionNode(path string) (*CollectionNode, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading collection node %s", path)
	}
	var n CollectionNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, false, errors.Wrapf(err, "decoding collection node %s", path)
	}
	return &n, true, nil
}

func saveCollectionNode(path string, n *CollectionNode) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding collection node")
	}
	return storage.AtomicWriteFile(path, data)
}

// mergeExtent folds one item's bbox/datetime into a collection's running
// extent, widening it as necessary.
func mergeExtent(n *CollectionNode, bbox [4]float64, datetime string) {
	if len(n.Items) == 0 {
		n.BBox = bbox
		n.TimeMin, n.TimeMax = datetime, datetime
		return
	}
	if bbox[0] < n.BBox[0] {
		n.BBox[0] = bbox[0]
	}
	if bbox[1] < n.BBox[1] {
		n.BBox[1] = bbox[1]
	}
	if bbox[2] > n.BBox[2] {
		n.BBox[2] = bbox[2]
	}
	if bbox[3] > n.BBox[3] {
		n.BBox[3] = bbox[3]
	}
	if datetime < n.TimeMin {
		n.TimeMin = datetime
	}
	if datetime > n.TimeMax {
		n.TimeMax = datetime
	}
}

// ensureAncestors builds/links the body -> mission -> platform ->
// instrument -> collection chain implied by cd, using discovery-time
// properties, and returns once the collection node itself exists. This
// mirrors StacRecordsTransformer._pds_collection_to_stac's walk down the
// catalog_ids list, creating whichever ancestor is missing and skipping
// whichever already exists.
func (b *Builder) ensureAncestors(cd model.CollectionDescriptor) error {
	if err := b.ensureRoot(); err != nil {
		return err
	}
	props := cd.ToSTACCatalogProps()
	missionID := b.resolveMissionID(cd)
	chain := []struct{ id, parent, propKey string }{
		{cd.CanonicalBodyID(), b.rootCatalogID(), cd.CanonicalBodyID()},
		{missionID, cd.CanonicalBodyID(), cd.CanonicalMissionID()},
		{cd.CanonicalPlatformID(), missionID, cd.CanonicalPlatformID()},
		{cd.CanonicalInstrumentID(), cd.CanonicalPlatformID(), cd.CanonicalInstrumentID()},
	}
	for _, link := range chain {
		p := props[link.propKey]
		if _, err := b.upsertCatalogNode(link.id, link.parent, p.Title, p.Description, p.Extra, false); err != nil {
			return errors.Wrapf(err, "linking catalog node %s", link.id)
		}
	}

	colPath := b.collectionNodePath(cd.Fingerprint())
	if _, ok, err := loadCollectionNode(colPath); err != nil {
		return err
	} else if !ok {
		col := &CollectionNode{ID: cd.CanonicalCollectionID(), ParentID: cd.CanonicalInstrumentID()}
		if err := saveCollectionNode(colPath, col); err != nil {
			return err
		}
		if err := b.linkChild(cd.CanonicalInstrumentID(), col.ID); err != nil {
			return err
		}
	}
	return nil
}

// TransformRecords converts every cached record page for fp into STAC
// items, merging each one into the collection's running extent. An item
// whose file already exists on disk is skipped, so re-running the phase
// after a partial failure never duplicates work.
func (b *Builder) TransformRecords(ctx context.Context, fp model.Fingerprint) (written int, err error) {
	cd, ok, err := b.registry.Get(fp)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Errorf("no registry entry for %s", fp)
	}
	if err := b.ensureAncestors(cd); err != nil {
		return 0, err
	}

	pages, err := b.files.ListPages(fp)
	if err != nil {
		return 0, err
	}

	colPath := b.collectionNodePath(fp)
	col, ok, err := loadCollectionNode(colPath)
	if err != nil {
		return 0, err
	}
	if !ok {
		col = &CollectionNode{ID: cd.CanonicalCollectionID(), ParentID: cd.CanonicalInstrumentID()}
	}
	seen := make(map[string]bool, len(col.Items))
	for _, id := range col.Items {
		seen[id] = true
	}

	changed := false
	var malformedPaths, malformedErrs []string
	for _, pageIndex := range pages {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		raw, err := b.files.ReadPage(fp, pageIndex)
		if err != nil {
			return written, err
		}
		page, decodeErr := model.DecodeRecordPage(raw)
		if decodeErr != nil {
			qpath, qerr := b.files.WriteQuarantine(fp, fmt.Sprintf("page_%03d.json", pageIndex), raw)
			if qerr != nil {
				return written, qerr
			}
			malformedPaths = append(malformedPaths, qpath)
			malformedErrs = append(malformedErrs, decodeErr.Error())
			continue
		}
		for _, rec := range page.Records {
			itemPath := b.itemPath(fp, rec.ODEID)
			if _, err := os.Stat(itemPath); err == nil {
				continue
			}
			item, err := rec.ToSTACItem(cd)
			if err != nil {
				return written, errors.Wrapf(err, "projecting record %s to a STAC item", rec.ODEID)
			}
			data, err := json.MarshalIndent(item, "", "  ")
			if err != nil {
				return written, errors.Wrap(err, "encoding STAC item")
			}
			if err := storage.AtomicWriteFile(itemPath, data); err != nil {
				return written, err
			}
			mergeExtent(col, item.BBox, item.DateTime)
			if !seen[item.ID] {
				seen[item.ID] = true
				col.Items = append(col.Items, item.ID)
			}
			changed = true
			written++
		}
	}
	if changed {
		sort.Strings(col.Items)
		if err := saveCollectionNode(colPath, col); err != nil {
			return written, err
		}
	}
	if len(malformedPaths) > 0 {
		return written, &pkgerr.Malformed{
			Path: strings.Join(malformedPaths, ", "),
			Err:  errors.Errorf("%d page(s) failed to decode: %s", len(malformedPaths), strings.Join(malformedErrs, "; ")),
		}
	}
	return written, nil
}

// TransformPDS3 refines the body/mission/platform/instrument catalog
// nodes with the properties parsed from this collection's downloaded
// PDS3 catalog objects, and refines the shared mission node's id from the
// Mission catalog's own alias name (see model.CanonicalMissionIDFromAlias).
func (b *Builder) TransformPDS3(ctx context.Context, fp model.Fingerprint) (int, error) {
	cd, ok, err := b.registry.Get(fp)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Errorf("no registry entry for %s", fp)
	}
	if err := b.ensureAncestors(cd); err != nil {
		return 0, err
	}

	pds3Files, err := b.files.ListPDS3(fp)
	if err != nil {
		return 0, err
	}

	refined := 0
	for _, f := range pds3Files {
		if err := ctx.Err(); err != nil {
			return refined, err
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return refined, errors.Wrapf(err, "reading %s", f.Path)
		}
		objs, err := pds3.ParseFile(f.Path, string(data))
		if err != nil {
			return refined, errors.Wrapf(err, "parsing %s", f.Path)
		}
		for _, obj := range objs {
			if err := b.applyCatalogObject(cd, obj); err != nil {
				return refined, err
			}
			refined++
		}
	}
	return refined, nil
}

// propString reads a textual property, treating both a missing key and
// the explicit PDS3 "unknown" sentinel as "nothing to write" rather than
// the literal string "UNKNOWN".
func propString(props map[string]pds3.Value, key string) string {
	v, ok := props[key]
	if !ok || v.Kind == pds3.KindUnknown {
		return ""
	}
	return v.String()
}

// redirectKey is the CatalogNode.Extra key a migrated provisional mission
// node is stamped with, so any caller still holding the host-keyed id
// (built before the Mission catalog object was parsed) can follow it to
// the alias-keyed node instead of recreating the provisional one.
const redirectKey = "redirect_to"

// resolveMissionID returns the mission node id a collection's ancestor
// chain should actually link under: the host-keyed provisional id, or
// the alias-keyed id it was migrated to once transform_pds3 parsed the
// Mission catalog object.
func (b *Builder) resolveMissionID(cd model.CollectionDescriptor) string {
	provisional := cd.CanonicalMissionID()
	node, ok, err := loadCatalogNode(b.catalogNodePath(provisional))
	if err != nil || !ok {
		return provisional
	}
	if redirect, ok := node.Extra[redirectKey].(string); ok && redirect != "" {
		return redirect
	}
	return provisional
}

// migrateProvisionalMission moves the host-keyed provisional mission
// node's children (the platform node, in practice) across to the
// alias-keyed node once the Mission catalog object has actually been
// parsed, unlinks the provisional node from the body catalog, and stamps
// it with a redirect so any caller still resolving the provisional id
// (an InstrumentHost object parsed from a different file, in either
// order) lands on the new node instead of recreating the old one. A
// no-op once already migrated, since resolveMissionID would have already
// returned newMissionID.
func (b *Builder) migrateProvisionalMission(cd model.CollectionDescriptor, newMissionID string) error {
	oldID := cd.CanonicalMissionID()
	if oldID == newMissionID {
		return nil
	}
	oldPath := b.catalogNodePath(oldID)
	oldNode, ok, err := loadCatalogNode(oldPath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if redirect, ok := oldNode.Extra[redirectKey].(string); ok && redirect == newMissionID {
		return nil
	}
	for _, childID := range oldNode.Children {
		childPath := b.catalogNodePath(childID)
		child, ok, err := loadCatalogNode(childPath)
		if err != nil {
			return err
		}
		if ok {
			child.ParentID = newMissionID
			if err := saveCatalogNode(childPath, child); err != nil {
				return err
			}
		}
		if err := b.linkChild(newMissionID, childID); err != nil {
			return err
		}
	}
	bodyPath := b.catalogNodePath(cd.CanonicalBodyID())
	if bodyNode, ok, err := loadCatalogNode(bodyPath); err != nil {
		return err
	} else if ok {
		kept := bodyNode.Children[:0]
		for _, c := range bodyNode.Children {
			if c != oldID {
				kept = append(kept, c)
			}
		}
		bodyNode.Children = kept
		if err := saveCatalogNode(bodyPath, bodyNode); err != nil {
			return err
		}
	}
	stub := &CatalogNode{ID: oldID, Extra: map[string]any{redirectKey: newMissionID}}
	return saveCatalogNode(oldPath, stub)
}

// applyCatalogObject refines one parsed catalog node's properties and,
// for Mission objects, relinks it under its alias-derived canonical id.
func (b *Builder) applyCatalogObject(cd model.CollectionDescriptor, obj pds3.Object) error {
	props := obj.Properties()
	switch obj.Kind() {
	case pds3.KindMission:
		alias := propString(props, "MISSION_ALIAS_NAME")
		if alias == "" {
			return nil
		}
		missionID := model.CanonicalMissionIDFromAlias(alias)
		if _, err := b.upsertCatalogNode(missionID, cd.CanonicalBodyID(), alias, propString(props, "MISSION_DESC"), nil, true); err != nil {
			return err
		}
		return b.migrateProvisionalMission(cd, missionID)
	case pds3.KindInstrumentHost:
		_, err := b.upsertCatalogNode(cd.CanonicalPlatformID(), b.resolveMissionID(cd),
			propString(props, "INSTRUMENT_HOST_NAME"), propString(props, "INSTRUMENT_HOST_DESC"), nil, true)
		return err
	case pds3.KindInstrument:
		_, err := b.upsertCatalogNode(cd.CanonicalInstrumentID(), cd.CanonicalPlatformID(),
			propString(props, "INSTRUMENT_NAME"), propString(props, "INSTRUMENT_DESC"),
			map[string]any{"instrument_type": propString(props, "INSTRUMENT_TYPE")}, true)
		return err
	case pds3.KindDataSet:
		colPath := b.collectionNodePath(cd.Fingerprint())
		col, ok, err := loadCollectionNode(colPath)
		if err != nil {
			return err
		}
		if !ok {
			col = &CollectionNode{ID: cd.CanonicalCollectionID(), ParentID: cd.CanonicalInstrumentID()}
		}
		col.Title = propString(props, "DATA_SET_NAME")
		col.Description = propString(props, "DATA_SET_DESC")
		return saveCollectionNode(colPath, col)
	default:
		return nil
	}
}
