package pds3

import (
	"path/filepath"
	"strings"

	"github.com/pdssp/pdscrawler/pkgerr"
)

// grammar names one of the eight catalog kinds and how to turn a parsed
// root object into its typed variant.
type grammar struct {
	name  string
	build func(file string, root *rawObject) (Object, error)
}

func wrap[T Object](build func(file string, root *rawObject) (*T, error)) func(string, *rawObject) (Object, error) {
	return func(file string, root *rawObject) (Object, error) {
		v, err := build(file, root)
		if err != nil {
			return nil, err
		}
		return *v, nil
	}
}

var grammars = []grammar{
	{KindMission, wrap(buildMission)},
	{KindInstrumentHost, wrap(buildInstrumentHost)},
	{KindInstrument, wrap(buildInstrument)},
	{KindDataSet, wrap(buildDataSet)},
	{KindDataSetMapProjection, wrap(buildDataSetMapProjection)},
	{KindPersonnel, wrap(buildPersonnel)},
	{KindReference, wrap(buildReference)},
	{KindVolumeDescriptor, wrap(buildVolumeDescriptor)},
}

// filenameHints maps case-insensitive filename substrings to a grammar
// name, used as the factory's first guess before falling back to the
// file's own root OBJECT = name.
var filenameHints = []struct {
	substr string
	kind   string
}{
	{"MISSION", KindMission},
	{"HOST", KindInstrumentHost},
	{"INST", KindInstrument},
	{"DSMAP", KindDataSetMapProjection},
	{"DS", KindDataSet},
	{"CATALOG", KindDataSet},
	{"PERSON", KindPersonnel},
	{"REF", KindReference},
	{"VOL", KindVolumeDescriptor},
}

// KindForFilename applies the same filename heuristic ParseFile uses
// internally and reports the catalog kind it implies, for callers (the
// website scraper) that need to classify a name before any PDS3 content
// has been fetched.
func KindForFilename(name string) (string, bool) {
	g := filenameHintedGrammar(name)
	if g == nil {
		return "", false
	}
	return g.name, true
}

func grammarByName(kind string) *grammar {
	for i := range grammars {
		if grammars[i].name == kind {
			return &grammars[i]
		}
	}
	return nil
}

// filenameHintedGrammar applies the filename heuristic and returns the
// single best-matching grammar, or nil if no hint substring appears in
// the filename.
func filenameHintedGrammar(filename string) *grammar {
	base := strings.ToUpper(filepath.Base(filename))
	for _, hint := range filenameHints {
		if strings.Contains(base, hint.substr) {
			if g := grammarByName(hint.kind); g != nil {
				return g
			}
		}
	}
	return nil
}

// ParseFile runs the full pipeline -- lex, build the generic object
// tree, then apply the parser factory -- over one catalog file's
// contents and returns the typed variants found (more than one for
// Personnel/Reference files that hold several records back to back).
//
// The factory first tries the grammar implied by the filename, then the
// grammar implied by the root objects' own OBJECT = name. Either one
// being a real hint means a structural rejection there is a genuine
// parse error worth surfacing, not a signal to guess further. Only when
// neither the filename nor the root name identifies a candidate does
// the factory fall back to trying every grammar in a fixed order and
// returning the first success.
func ParseFile(filename, src string) ([]Object, error) {
	parsed, err := parseFile(filename, src)
	if err != nil {
		return nil, err
	}

	byName := filenameHintedGrammar(filename)
	byRoot := grammarByRootNames(parsed.Roots)

	if byName != nil {
		objs, err := tryGrammar(filename, parsed.Roots, byName)
		if err == nil {
			return objs, nil
		}
		if byRoot != nil && byRoot != byName {
			if objs, rootErr := tryGrammar(filename, parsed.Roots, byRoot); rootErr == nil {
				return objs, nil
			}
		}
		return nil, err
	}
	if byRoot != nil {
		return tryGrammar(filename, parsed.Roots, byRoot)
	}

	var lastErr error
	for _, g := range grammars {
		objs, err := tryGrammar(filename, parsed.Roots, &g)
		if err == nil {
			return objs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// grammarByRootNames returns the grammar whose kind name matches every
// root object's own declared OBJECT = name, when that's unambiguous.
func grammarByRootNames(roots []*rawObject) *grammar {
	if len(roots) == 0 {
		return nil
	}
	kind := normalizeRootKind(strings.ToUpper(roots[0].Kind))
	g := grammarByName(kind)
	if g == nil {
		return nil
	}
	for _, r := range roots[1:] {
		if normalizeRootKind(strings.ToUpper(r.Kind)) != kind {
			return nil
		}
	}
	return g
}

// normalizeRootKind maps the handful of root OBJECT = spellings that
// differ from the canonical grammar name (e.g. plain "INSTRUMENT_HOST"
// vs. a volume descriptor's root, which is conventionally "VOLUME" or
// "VOLUME_DESCRIPTOR" across the archive).
func normalizeRootKind(kind string) string {
	switch kind {
	case "VOLUME_DESCRIPTOR", "VOLUME":
		return KindVolumeDescriptor
	case "DATA_SET_MAP_PROJECTION_CATALOG":
		return KindDataSetMapProjection
	default:
		return kind
	}
}

func tryGrammar(filename string, roots []*rawObject, g *grammar) ([]Object, error) {
	objs := make([]Object, 0, len(roots))
	for _, root := range roots {
		obj, err := g.build(filename, root)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	if len(objs) == 0 {
		return nil, &pkgerr.ParseError{File: filename, Msg: "no objects parsed under grammar " + g.name}
	}
	return objs, nil
}
