package geo

import "testing"

func TestSplitJoinID(t *testing.T) {
	tests := []struct {
		name string
		id   int64
	}{
		{"zero", 0},
		{"small positive", 42},
		{"exact bucket boundary", 10_000},
		{"large positive", 123_456_789},
		{"negative one", -1},
		{"negative small", -42},
		{"negative large", -123_456_789},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upper, lower := SplitID(tt.id)
			got := JoinID(upper, lower)
			if got != tt.id {
				t.Errorf("JoinID(SplitID(%d)) = %d, want %d", tt.id, got, tt.id)
			}
		})
	}
}

func TestSplitIDZero(t *testing.T) {
	upper, lower := SplitID(0)
	if upper != 0 || lower != 0 {
		t.Errorf("SplitID(0) = (%d, %d), want (0, 0)", upper, lower)
	}
}

func TestSplitIDNegativeOneDistinctFromZero(t *testing.T) {
	u0, l0 := SplitID(0)
	u1, l1 := SplitID(-1)
	if u0 == u1 && l0 == l1 {
		t.Errorf("SplitID(-1) = (%d, %d) collides with SplitID(0) = (%d, %d)", u1, l1, u0, l0)
	}
}
