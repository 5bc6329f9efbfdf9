package kml

import "testing"

func TestClassifyFolder(t *testing.T) {
	cases := []struct {
		name      string
		wantClass int32
		wantOK    bool
	}{
		{"Indian Peaks Wilderness", ClassWilderness, true},
		{"Rocky Mountain National Park", ClassNationalPark, true},
		{"Roosevelt National Forest", ClassNationalForest, true},
		{"Eldorado Canyon State Park", ClassStatePark, true},
		{"Boulder County", ClassCounty, true},
		{"City of Boulder", ClassCity, true},
		{"Some Unrelated Folder", 0, false},
	}
	for _, c := range cases {
		class, ok := ClassifyFolder(c.name)
		if ok != c.wantOK || (ok && class != c.wantClass) {
			t.Errorf("ClassifyFolder(%q) = (%d, %v), want (%d, %v)", c.name, class, ok, c.wantClass, c.wantOK)
		}
	}
}

func TestIDMinterCountsDown(t *testing.T) {
	m := NewIDMinter()
	first := m.Next()
	second := m.Next()
	if first != -2 || second != -3 {
		t.Errorf("got %d, %d, want -2, -3", first, second)
	}
}
