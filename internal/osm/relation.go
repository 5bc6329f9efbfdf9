package osm

import (
	"fmt"
	"strconv"

	"github.com/jeffboody/osmdb/internal/geo"
)

// MemberKind distinguishes a relation member's referenced entity kind.
// Member-of-relation is never represented: relation members are resolved
// only one level deep, so a relation member can only be a node or
// a way.
type MemberKind uint8

const (
	MemberNode MemberKind = iota
	MemberWay
)

// Role is the fixed, bijective code table used to serialize relation
// member roles.
type Role uint8

const (
	RoleNone        Role = 0
	RoleOuter       Role = 1
	RoleInner       Role = 2
	RoleLabel       Role = 3
	RoleAdminCentre Role = 4
	RoleStop        Role = 5
	RolePlatform    Role = 6
	RoleFrom        Role = 7
	RoleTo          Role = 8
	RoleVia         Role = 9
	RoleMainStream  Role = 10
	RoleSideStream  Role = 11
	RoleOther       Role = 255
)

var roleStrings = map[Role]string{
	RoleNone:        "",
	RoleOuter:       "outer",
	RoleInner:       "inner",
	RoleLabel:       "label",
	RoleAdminCentre: "admin_centre",
	RoleStop:        "stop",
	RolePlatform:    "platform",
	RoleFrom:        "from",
	RoleTo:          "to",
	RoleVia:         "via",
	RoleMainStream:  "main_stream",
	RoleSideStream:  "side_stream",
}

var stringRoles = func() map[string]Role {
	m := make(map[string]Role, len(roleStrings))
	for r, s := range roleStrings {
		m[s] = r
	}
	return m
}()

// ParseRole maps a role string to its code. Unknown strings map to
// RoleOther; callers that need the original string for RoleOther tiles
// should retain it separately (the on-disk "rolestr" attribute).
func ParseRole(s string) Role {
	if r, ok := stringRoles[s]; ok {
		return r
	}
	return RoleOther
}

// String returns the role's canonical string form ("" for RoleOther since
// the original string lives alongside it on disk, not in the code table).
func (r Role) String() string {
	return roleStrings[r]
}

// Member is one entry in a relation's ordered member sequence.
type Member struct {
	Kind    MemberKind
	Ref     int64
	Role    Role
	RoleStr string // only set (and only serialized) when Role == RoleOther
}

// Relation is an ordered sequence of members plus attributes.
type Relation struct {
	ID      int64
	Class   int32
	Type    int32
	Name    string
	Abrev   string
	Members []Member
	BBox    geo.BBox
}

// NewRelationFromAttrs builds a Relation (with empty Members) from a
// SAX-style attribute map.
func NewRelationFromAttrs(attrs map[string]string) (Relation, error) {
	id, err := strconv.ParseInt(attrs["id"], 10, 64)
	if err != nil {
		return Relation{}, fmt.Errorf("relation: invalid id %q: %w", attrs["id"], err)
	}
	r := Relation{ID: id}
	if v, ok := attrs["class"]; ok {
		r.Class = parseInt32(v)
	}
	if v, ok := attrs["type"]; ok {
		r.Type = parseInt32(v)
	}
	r.Name = attrs["name"]
	r.Abrev = attrs["abrev"]
	return r, nil
}

// AddMember appends a member, discarding relation-kind members: relation
// membership is resolved only one level deep, so members that are
// themselves relations are ignored.
func (r *Relation) AddMember(kindAttr string, ref int64, roleAttr string) {
	var kind MemberKind
	switch kindAttr {
	case "node":
		kind = MemberNode
	case "way":
		kind = MemberWay
	default:
		return // relation-kind or unrecognized member: discard
	}
	role := ParseRole(roleAttr)
	m := Member{Kind: kind, Ref: ref, Role: role}
	if role == RoleOther {
		m.RoleStr = roleAttr
	}
	r.Members = append(r.Members, m)
}

// Clone returns a deep structural copy.
func (r Relation) Clone() Relation {
	c := r
	c.Members = append([]Member(nil), r.Members...)
	return c
}

// SizeOf estimates the in-memory byte footprint used for chunk cache accounting.
func (r Relation) SizeOf() int64 {
	const structSize = 96
	const memberSize = 24
	total := structSize + len(r.Name) + len(r.Abrev) + len(r.Members)*memberSize
	for _, m := range r.Members {
		total += len(m.RoleStr)
	}
	return int64(total)
}
