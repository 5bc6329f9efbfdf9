package store

// Kind enumerates the chunk store's storage kinds: the three
// entity kinds, their "center" forms, and the naked-id reference sets used
// during filtering passes. The string form is the on-disk directory name
// under <base>/<kind>/ — it is a stable, bijective mapping, persisted once
// a database has been created with it.
type Kind int

const (
	KindNode Kind = iota
	KindWay
	KindRelation
	KindCtrNode
	KindCtrWay
	KindCtrRelation
	KindNodeRef
	KindWayRef
	KindCtrNodeRef
	KindCtrWayRef
	numKinds
)

var kindNames = [numKinds]string{
	KindNode:        "node",
	KindWay:         "way",
	KindRelation:    "relation",
	KindCtrNode:     "ctr_node",
	KindCtrWay:      "ctr_way",
	KindCtrRelation: "ctr_relation",
	KindNodeRef:     "node_ref",
	KindWayRef:      "way_ref",
	KindCtrNodeRef:  "ctr_node_ref",
	KindCtrWayRef:   "ctr_way_ref",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k, s := range kindNames {
		m[s] = Kind(k)
	}
	return m
}()

// String returns the stable on-disk directory name for the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= int(numKinds) {
		return "invalid"
	}
	return kindNames[k]
}

// KindFromString inverts String, for tools that need to recover a Kind from
// a directory name (e.g. the iterator or diagnostic CLIs).
func KindFromString(s string) (Kind, bool) {
	k, ok := namesToKind[s]
	return k, ok
}

// Valid reports whether k is one of the ten defined storage kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < int(numKinds)
}

// IsCenter reports whether k is one of the CTR_* "center form" kinds.
func (k Kind) IsCenter() bool {
	return k == KindCtrNode || k == KindCtrWay || k == KindCtrRelation
}

// IsRef reports whether k is one of the naked-id *_REF kinds.
func (k Kind) IsRef() bool {
	return k == KindNodeRef || k == KindWayRef || k == KindCtrNodeRef || k == KindCtrWayRef
}

// EntityKindOf maps a CTR_* or *_REF kind back to the base entity kind it
// shadows (e.g. KindCtrNode and KindNodeRef both map to KindNode). Other
// kinds map to themselves.
func EntityKindOf(k Kind) Kind {
	switch k {
	case KindCtrNode, KindNodeRef, KindCtrNodeRef:
		return KindNode
	case KindCtrWay, KindWayRef, KindCtrWayRef:
		return KindWay
	default:
		return k
	}
}
