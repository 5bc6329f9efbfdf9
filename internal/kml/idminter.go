package kml

// IDMinter hands out synthetic negative ids for entities KML ingestion
// fabricates (nodes and ways that have no upstream OSM id). Ids start at -2
// and count down; -1 is reserved so a caller can distinguish "no id minted
// yet" from a real minted value with the zero value of int64 left unused by
// either OSM or this minter.
type IDMinter struct {
	next int64
}

// NewIDMinter returns a minter whose first Next() call yields -2.
func NewIDMinter() *IDMinter {
	return &IDMinter{next: -2}
}

// Next returns the next synthetic id and advances the counter.
func (m *IDMinter) Next() int64 {
	id := m.next
	m.next--
	return id
}
