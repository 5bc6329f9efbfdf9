package kml

import "strings"

// Class codes the KML importer mints. These mirror the convention every
// class code in a filter.xml style table follows (small positive integers);
// the importer reuses OSM class codes via a fixed string-match table rather
// than a configuration surface. Boundary
// classes are rare enough that a closed lookup is the honest description
// of what the source system actually does.
const (
	ClassWilderness     int32 = 900
	ClassNationalPark   int32 = 901
	ClassNationalForest int32 = 902
	ClassStatePark      int32 = 903
	ClassWildlifeRefuge int32 = 904
	ClassCounty         int32 = 905
	ClassCity           int32 = 906
)

// folderRules is the fixed, embedded string-match table: the first rule
// whose substring matches (case-insensitively)
// wins. Order matters — more specific names are listed before their
// substrings (e.g. "National Forest" before "Forest" would matter if
// "Forest" were a rule, so specific multi-word rules are listed first).
var folderRules = []struct {
	substr string
	class  int32
}{
	{"wilderness", ClassWilderness},
	{"national park", ClassNationalPark},
	{"national forest", ClassNationalForest},
	{"state park", ClassStatePark},
	{"wildlife refuge", ClassWildlifeRefuge},
	{"county", ClassCounty},
	{"city", ClassCity},
}

// ClassifyFolder maps a KML <Folder>/<Placemark> name to a core class code
// by case-insensitive substring match against the fixed rule table above.
// ok is false when no rule matches — callers should skip the placemark
// entirely rather than guess a class.
func ClassifyFolder(name string) (class int32, ok bool) {
	lower := strings.ToLower(name)
	for _, r := range folderRules {
		if strings.Contains(lower, r.substr) {
			return r.class, true
		}
	}
	return 0, false
}
