package pds3

import (
	"strings"

	"github.com/pdssp/pdscrawler/pkgerr"
)

// Object is the common interface implemented by every tagged PDS3
// variant: its keyword/value properties plus a string tag identifying
// which of the eight catalog kinds it is.
type Object interface {
	Kind() string
	Properties() map[string]Value
}

const (
	KindMission              = "MISSION"
	KindInstrumentHost       = "INSTRUMENT_HOST"
	KindInstrument           = "INSTRUMENT"
	KindDataSet              = "DATA_SET"
	KindDataSetMapProjection = "DATA_SET_MAP_PROJECTION"
	KindPersonnel            = "PERSONNEL"
	KindReference            = "REFERENCE"
	KindVolumeDescriptor     = "VOLUME"
)

// base carries the keyword properties a variant exposes verbatim: the
// keywords of its main information sub-block (for Reference and
// VolumeDescriptor, the root object's own keywords). Other root-level
// keywords and sub-objects the grammar does not name are not kept.
type base struct {
	props map[string]Value
}

func (b base) Properties() map[string]Value { return b.props }

// Mission is the MISSION catalog variant: one MISSION_INFORMATION block,
// exactly one MISSION_HOST with 1..n MISSION_TARGET children, and 0..n
// MISSION_REFERENCE_INFORMATION blocks.
type Mission struct {
	base
	Targets    []string
	References []map[string]Value
}

func (Mission) Kind() string { return KindMission }

// InstrumentHost is the INSTRUMENT_HOST variant.
type InstrumentHost struct {
	base
	References []map[string]Value
}

func (InstrumentHost) Kind() string { return KindInstrumentHost }

// Instrument is the INSTRUMENT variant.
type Instrument struct {
	base
	References []map[string]Value
}

func (Instrument) Kind() string { return KindInstrument }

// DataSet is the DATA_SET variant.
type DataSet struct {
	base
	Targets    []string
	Host       map[string]Value
	Mission    map[string]Value
	References []map[string]Value
}

func (DataSet) Kind() string { return KindDataSet }

// DataSetMapProjection is the DATA_SET_MAP_PROJECTION variant.
type DataSetMapProjection struct {
	base
	References []map[string]Value
}

func (DataSetMapProjection) Kind() string { return KindDataSetMapProjection }

// Personnel is one PERSONNEL record: one PERSONNEL_INFORMATION block plus
// 0..n PERSONNEL_ELECTRONIC_MAIL addresses. A single file commonly holds
// many of these back to back.
type Personnel struct {
	base
	Emails []string
}

func (Personnel) Kind() string { return KindPersonnel }

// Reference is one REFERENCE record: keyword set only, no sub-objects.
type Reference struct {
	base
}

func (Reference) Kind() string { return KindReference }

// VolumeDescriptor is the VOLUME variant: one DATA_PRODUCER, one CATALOG,
// an optional DATA_SUPPLIER, and any number of FILE/DIRECTORY entries
// (DIRECTORY nests recursively).
type VolumeDescriptor struct {
	base
	DataProducer map[string]Value
	Catalog      map[string]Value
	DataSupplier map[string]Value
	Files        []map[string]Value
	Directories  []VolumeDirectory
}

func (VolumeDescriptor) Kind() string { return KindVolumeDescriptor }

// VolumeDirectory is one DIRECTORY sub-block of a VolumeDescriptor.
type VolumeDirectory struct {
	Name        string
	Files       []map[string]Value
	Directories []VolumeDirectory
}

func requireOne(file string, obj *rawObject, kinds ...string) (*rawObject, error) {
	found := obj.childrenOf(kinds...)
	if len(found) == 0 {
		return nil, pkgerr.Invariant(file, obj.Line, kinds[0])
	}
	if len(found) > 1 {
		return nil, &pkgerr.ParseError{File: file, Line: found[1].Line, Msg: "more than one " + kinds[0] + " block"}
	}
	return found[0], nil
}

func requireAtLeastOne(file string, obj *rawObject, kinds ...string) ([]*rawObject, error) {
	found := obj.childrenOf(kinds...)
	if len(found) == 0 {
		return nil, pkgerr.Invariant(file, obj.Line, kinds[0])
	}
	return found, nil
}

func propsOf(all []*rawObject) []map[string]Value {
	out := make([]map[string]Value, len(all))
	for i, o := range all {
		out[i] = o.Props
	}
	return out
}

func buildMission(file string, root *rawObject) (*Mission, error) {
	info, err := requireOne(file, root, "MISSION_INFORMATION")
	if err != nil {
		return nil, err
	}
	host, err := requireOne(file, root, "MISSION_HOST")
	if err != nil {
		return nil, err
	}
	targetObjs, err := requireAtLeastOne(file, host, "MISSION_TARGET")
	if err != nil {
		return nil, err
	}
	targets := make([]string, len(targetObjs))
	for i, t := range targetObjs {
		targets[i] = strings.ToUpper(t.Props["TARGET_NAME"].String())
	}
	refs := root.childrenOf("MISSION_REFERENCE_INFORMATION")
	return &Mission{base: base{props: info.Props}, Targets: targets, References: propsOf(refs)}, nil
}

func buildInstrumentHost(file string, root *rawObject) (*InstrumentHost, error) {
	info, err := requireOne(file, root, "INSTRUMENT_HOST_INFORMATION")
	if err != nil {
		return nil, err
	}
	refs := root.childrenOf("INSTRUMENT_HOST_REFERENCE_INFO")
	return &InstrumentHost{base: base{props: info.Props}, References: propsOf(refs)}, nil
}

func buildInstrument(file string, root *rawObject) (*Instrument, error) {
	info, err := requireOne(file, root, "INSTRUMENT_INFORMATION", "INSTINFO")
	if err != nil {
		return nil, err
	}
	refs := root.childrenOf("INSTRUMENT_REFERENCE_INFO", "INSTREFINFO")
	return &Instrument{base: base{props: info.Props}, References: propsOf(refs)}, nil
}

func buildDataSet(file string, root *rawObject) (*DataSet, error) {
	info, err := requireOne(file, root, "DATA_SET_INFORMATION")
	if err != nil {
		return nil, err
	}
	targetObjs, err := requireAtLeastOne(file, root, "DATA_SET_TARGET")
	if err != nil {
		return nil, err
	}
	host, err := requireOne(file, root, "DATA_SET_HOST")
	if err != nil {
		return nil, err
	}
	mission, err := requireOne(file, root, "DATA_SET_MISSION")
	if err != nil {
		return nil, err
	}
	targets := make([]string, len(targetObjs))
	for i, t := range targetObjs {
		targets[i] = strings.ToUpper(t.Props["TARGET_NAME"].String())
	}
	refs := root.childrenOf("DATA_SET_REFERENCE_INFORMATION")
	return &DataSet{
		base:       base{props: info.Props},
		Targets:    targets,
		Host:       host.Props,
		Mission:    mission.Props,
		References: propsOf(refs),
	}, nil
}

func buildDataSetMapProjection(file string, root *rawObject) (*DataSetMapProjection, error) {
	info, err := requireOne(file, root, "DATA_SET_MAP_PROJECTION_INFO")
	if err != nil {
		return nil, err
	}
	refs := info.childrenOf("DS_MAP_PROJECTION_REF_INFO")
	return &DataSetMapProjection{base: base{props: info.Props}, References: propsOf(refs)}, nil
}

func buildPersonnel(file string, root *rawObject) (*Personnel, error) {
	info, err := requireOne(file, root, "PERSONNEL_INFORMATION")
	if err != nil {
		return nil, err
	}
	emailObjs := root.childrenOf("PERSONNEL_ELECTRONIC_MAIL")
	emails := make([]string, len(emailObjs))
	for i, e := range emailObjs {
		emails[i] = e.Props["ELECTRONIC_MAIL_ID"].String()
	}
	return &Personnel{base: base{props: info.Props}, Emails: emails}, nil
}

func buildReference(_ string, root *rawObject) (*Reference, error) {
	return &Reference{base: base{props: root.Props}}, nil
}

func buildVolumeDescriptor(file string, root *rawObject) (*VolumeDescriptor, error) {
	producer, err := requireOne(file, root, "DATA_PRODUCER")
	if err != nil {
		return nil, err
	}
	catalog, err := requireOne(file, root, "CATALOG")
	if err != nil {
		return nil, err
	}
	var supplierProps map[string]Value
	if suppliers := root.childrenOf("DATA_SUPPLIER"); len(suppliers) > 0 {
		supplierProps = suppliers[0].Props
	}
	files := propsOf(root.childrenOf("FILE"))
	dirs := buildVolumeDirectories(root.childrenOf("DIRECTORY"))
	return &VolumeDescriptor{
		base:         base{props: root.Props},
		DataProducer: producer.Props,
		Catalog:      catalog.Props,
		DataSupplier: supplierProps,
		Files:        files,
		Directories:  dirs,
	}, nil
}

func buildVolumeDirectories(dirs []*rawObject) []VolumeDirectory {
	out := make([]VolumeDirectory, len(dirs))
	for i, d := range dirs {
		out[i] = VolumeDirectory{
			Name:        d.Props["NAME"].String(),
			Files:       propsOf(d.childrenOf("FILE")),
			Directories: buildVolumeDirectories(d.childrenOf("DIRECTORY")),
		}
	}
	return out
}
