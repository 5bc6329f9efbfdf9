// Package sqlitestore is the alternative SQLite-backed persistence layer:
// the same node/way/relation/tile-ref operations
// internal/store exposes, built on database/sql against
// modernc.org/sqlite (pure Go, no cgo — the driver choice the rest of the
// example corpus reaches for when a table store needs portability), rather
// than gzipped XML chunk files. Entities are addressed directly by primary
// key; there is no id_upper chunk-bucketing concept here since SQLite
// already indexes by id.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/jeffboody/osmdb/internal/osm"
)

const schema = `
CREATE TABLE IF NOT EXISTS tbl_nodes(
	id INTEGER PRIMARY KEY, lat REAL, lon REAL, class INTEGER,
	name TEXT, abrev TEXT, ele INTEGER, st INTEGER, refcount INTEGER);
CREATE TABLE IF NOT EXISTS tbl_ctr_nodes(
	id INTEGER PRIMARY KEY, lat REAL, lon REAL, class INTEGER,
	name TEXT, abrev TEXT, ele INTEGER, st INTEGER, refcount INTEGER);
CREATE TABLE IF NOT EXISTS tbl_ways(
	id INTEGER PRIMARY KEY, class INTEGER, layer INTEGER,
	name TEXT, abrev TEXT, oneway INTEGER, bridge INTEGER, tunnel INTEGER,
	cutting INTEGER, latT REAL, lonL REAL, latB REAL, lonR REAL);
CREATE TABLE IF NOT EXISTS tbl_ways_nds(way_id INTEGER, seq INTEGER, node_id INTEGER);
CREATE INDEX IF NOT EXISTS idx_ways_nds_way ON tbl_ways_nds(way_id);
CREATE TABLE IF NOT EXISTS tbl_rels(
	id INTEGER PRIMARY KEY, class INTEGER, type INTEGER,
	name TEXT, abrev TEXT, latT REAL, lonL REAL, latB REAL, lonR REAL);
CREATE TABLE IF NOT EXISTS tbl_ways_members(rel_id INTEGER, seq INTEGER, way_id INTEGER, role INTEGER, rolestr TEXT);
CREATE INDEX IF NOT EXISTS idx_ways_members_rel ON tbl_ways_members(rel_id);
CREATE TABLE IF NOT EXISTS tbl_nodes_members(rel_id INTEGER, seq INTEGER, node_id INTEGER, role INTEGER, rolestr TEXT);
CREATE INDEX IF NOT EXISTS idx_nodes_members_rel ON tbl_nodes_members(rel_id);
CREATE TABLE IF NOT EXISTS tbl_ways_range(zoom INTEGER, tx INTEGER, ty INTEGER, way_id INTEGER);
CREATE INDEX IF NOT EXISTS idx_ways_range_tile ON tbl_ways_range(zoom, tx, ty);
CREATE TABLE IF NOT EXISTS tbl_rels_range(zoom INTEGER, tx INTEGER, ty INTEGER, rel_id INTEGER);
CREATE INDEX IF NOT EXISTS idx_rels_range_tile ON tbl_rels_range(zoom, tx, ty);
CREATE TABLE IF NOT EXISTS tbl_nodes_range(zoom INTEGER, tx INTEGER, ty INTEGER, node_id INTEGER);
CREATE INDEX IF NOT EXISTS idx_nodes_range_tile ON tbl_nodes_range(zoom, tx, ty);
`

// Store owns a single SQLite database file holding every table in the
// schema above. Unlike ChunkStore/TileStore it keeps no separate in-memory
// LRU cache — SQLite's own page cache (sized by the cache_size pragma) does
// that job — and it is single-writer exactly like the XML backend.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the SQLite database at path and ensures the
// schema exists. WAL mode is enabled so a read-only tile-production reader
// can run concurrently with this writer's connection, matching the
// concurrency model internal/index's flock enforces at the process level.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlitestore: creating dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = OFF",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func nodeTable(center bool) string {
	if center {
		return "tbl_ctr_nodes"
	}
	return "tbl_nodes"
}

// AddNode inserts or overwrites a node. center selects the CTR_NODE-
// equivalent table.
func (s *Store) AddNode(n osm.Node, center bool) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT OR REPLACE INTO %s(id,lat,lon,class,name,abrev,ele,st,refcount) VALUES(?,?,?,?,?,?,?,?,?)`, nodeTable(center)),
		n.ID, n.Lat, n.Lon, n.Class, n.Name, n.Abrev, n.Ele, n.St, n.RefCount)
	if err != nil {
		return fmt.Errorf("sqlitestore: AddNode %d: %w", n.ID, err)
	}
	return nil
}

// FindNode looks up a node by id in the given table (center selects
// tbl_ctr_nodes).
func (s *Store) FindNode(id int64, center bool) (osm.Node, bool, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT id,lat,lon,class,name,abrev,ele,st,refcount FROM %s WHERE id=?`, nodeTable(center)), id)
	var n osm.Node
	if err := row.Scan(&n.ID, &n.Lat, &n.Lon, &n.Class, &n.Name, &n.Abrev, &n.Ele, &n.St, &n.RefCount); err != nil {
		if err == sql.ErrNoRows {
			return osm.Node{}, false, nil
		}
		return osm.Node{}, false, fmt.Errorf("sqlitestore: FindNode %d: %w", id, err)
	}
	return n, true, nil
}

// AddWay inserts or overwrites a way and its ordered nd list.
func (s *Store) AddWay(w osm.Way) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlitestore: AddWay %d: begin: %w", w.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO tbl_ways(id,class,layer,name,abrev,oneway,bridge,tunnel,cutting,latT,lonL,latB,lonR)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Class, w.Layer, w.Name, w.Abrev, w.Oneway, w.Bridge, w.Tunnel, w.Cutting,
		w.BBox.LatT, w.BBox.LonL, w.BBox.LatB, w.BBox.LonR)
	if err != nil {
		return fmt.Errorf("sqlitestore: AddWay %d: %w", w.ID, err)
	}
	if _, err := tx.Exec(`DELETE FROM tbl_ways_nds WHERE way_id=?`, w.ID); err != nil {
		return fmt.Errorf("sqlitestore: AddWay %d: clearing nds: %w", w.ID, err)
	}
	for seq, nd := range w.Nds {
		if _, err := tx.Exec(`INSERT INTO tbl_ways_nds(way_id,seq,node_id) VALUES(?,?,?)`, w.ID, seq, nd); err != nil {
			return fmt.Errorf("sqlitestore: AddWay %d: inserting nd: %w", w.ID, err)
		}
	}
	return tx.Commit()
}

// FindWay looks up a way by id, including its ordered nds.
func (s *Store) FindWay(id int64) (osm.Way, bool, error) {
	row := s.db.QueryRow(`SELECT id,class,layer,name,abrev,oneway,bridge,tunnel,cutting,latT,lonL,latB,lonR
		FROM tbl_ways WHERE id=?`, id)
	var w osm.Way
	if err := row.Scan(&w.ID, &w.Class, &w.Layer, &w.Name, &w.Abrev, &w.Oneway, &w.Bridge, &w.Tunnel, &w.Cutting,
		&w.BBox.LatT, &w.BBox.LonL, &w.BBox.LatB, &w.BBox.LonR); err != nil {
		if err == sql.ErrNoRows {
			return osm.Way{}, false, nil
		}
		return osm.Way{}, false, fmt.Errorf("sqlitestore: FindWay %d: %w", id, err)
	}

	rows, err := s.db.Query(`SELECT node_id FROM tbl_ways_nds WHERE way_id=? ORDER BY seq`, id)
	if err != nil {
		return osm.Way{}, false, fmt.Errorf("sqlitestore: FindWay %d: nds: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var nd int64
		if err := rows.Scan(&nd); err != nil {
			return osm.Way{}, false, err
		}
		w.Nds = append(w.Nds, nd)
	}
	return w, true, rows.Err()
}

// AddRelation inserts or overwrites a relation and its ordered member lists.
func (s *Store) AddRelation(r osm.Relation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlitestore: AddRelation %d: begin: %w", r.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO tbl_rels(id,class,type,name,abrev,latT,lonL,latB,lonR)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Class, r.Type, r.Name, r.Abrev, r.BBox.LatT, r.BBox.LonL, r.BBox.LatB, r.BBox.LonR)
	if err != nil {
		return fmt.Errorf("sqlitestore: AddRelation %d: %w", r.ID, err)
	}
	if _, err := tx.Exec(`DELETE FROM tbl_ways_members WHERE rel_id=?`, r.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tbl_nodes_members WHERE rel_id=?`, r.ID); err != nil {
		return err
	}
	for seq, m := range r.Members {
		switch m.Kind {
		case osm.MemberWay:
			if _, err := tx.Exec(`INSERT INTO tbl_ways_members(rel_id,seq,way_id,role,rolestr) VALUES(?,?,?,?,?)`,
				r.ID, seq, m.Ref, m.Role, m.RoleStr); err != nil {
				return fmt.Errorf("sqlitestore: AddRelation %d: way member: %w", r.ID, err)
			}
		case osm.MemberNode:
			if _, err := tx.Exec(`INSERT INTO tbl_nodes_members(rel_id,seq,node_id,role,rolestr) VALUES(?,?,?,?,?)`,
				r.ID, seq, m.Ref, m.Role, m.RoleStr); err != nil {
				return fmt.Errorf("sqlitestore: AddRelation %d: node member: %w", r.ID, err)
			}
		}
	}
	return tx.Commit()
}

// FindRelation looks up a relation by id, including its ordered members.
func (s *Store) FindRelation(id int64) (osm.Relation, bool, error) {
	row := s.db.QueryRow(`SELECT id,class,type,name,abrev,latT,lonL,latB,lonR FROM tbl_rels WHERE id=?`, id)
	var r osm.Relation
	if err := row.Scan(&r.ID, &r.Class, &r.Type, &r.Name, &r.Abrev, &r.BBox.LatT, &r.BBox.LonL, &r.BBox.LatB, &r.BBox.LonR); err != nil {
		if err == sql.ErrNoRows {
			return osm.Relation{}, false, nil
		}
		return osm.Relation{}, false, fmt.Errorf("sqlitestore: FindRelation %d: %w", id, err)
	}

	type seqMember struct {
		seq int
		m   osm.Member
	}
	var members []seqMember

	wrows, err := s.db.Query(`SELECT seq,way_id,role,rolestr FROM tbl_ways_members WHERE rel_id=?`, id)
	if err != nil {
		return osm.Relation{}, false, err
	}
	for wrows.Next() {
		var sm seqMember
		sm.m.Kind = osm.MemberWay
		if err := wrows.Scan(&sm.seq, &sm.m.Ref, &sm.m.Role, &sm.m.RoleStr); err != nil {
			wrows.Close()
			return osm.Relation{}, false, err
		}
		members = append(members, sm)
	}
	wrows.Close()

	nrows, err := s.db.Query(`SELECT seq,node_id,role,rolestr FROM tbl_nodes_members WHERE rel_id=?`, id)
	if err != nil {
		return osm.Relation{}, false, err
	}
	for nrows.Next() {
		var sm seqMember
		sm.m.Kind = osm.MemberNode
		if err := nrows.Scan(&sm.seq, &sm.m.Ref, &sm.m.Role, &sm.m.RoleStr); err != nil {
			nrows.Close()
			return osm.Relation{}, false, err
		}
		members = append(members, sm)
	}
	nrows.Close()

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if members[j].seq < members[i].seq {
				members[i], members[j] = members[j], members[i]
			}
		}
	}
	for _, sm := range members {
		r.Members = append(r.Members, sm.m)
	}
	return r, true, nil
}

// AddTileRef inserts a (zoom, tx, ty, id) row into the range table selected
// by kind, ignoring a duplicate insert (matches the XML backend's
// set-insertion semantics). kind is one of "node", "way", "rel".
func (s *Store) AddTileRef(kind string, zoom, tx, ty int, id int64) error {
	table, err := rangeTable(kind)
	if err != nil {
		return err
	}
	col := kind + "_id"
	exists := 0
	row := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE zoom=? AND tx=? AND ty=? AND %s=?`, table, col),
		zoom, tx, ty, id)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("sqlitestore: AddTileRef: %w", err)
	}
	if exists > 0 {
		return nil
	}
	if _, err := s.db.Exec(fmt.Sprintf(`INSERT INTO %s(zoom,tx,ty,%s) VALUES(?,?,?,?)`, table, col), zoom, tx, ty, id); err != nil {
		return fmt.Errorf("sqlitestore: AddTileRef: %w", err)
	}
	return nil
}

// TileRefs returns every id referenced by tile (zoom, tx, ty) for the given
// kind ("node", "way", or "rel").
func (s *Store) TileRefs(kind string, zoom, tx, ty int) ([]int64, error) {
	table, err := rangeTable(kind)
	if err != nil {
		return nil, err
	}
	col := kind + "_id"
	rows, err := s.db.Query(fmt.Sprintf(`SELECT %s FROM %s WHERE zoom=? AND tx=? AND ty=?`, col, table), zoom, tx, ty)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: TileRefs: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func rangeTable(kind string) (string, error) {
	switch kind {
	case "node":
		return "tbl_nodes_range", nil
	case "way":
		return "tbl_ways_range", nil
	case "rel":
		return "tbl_rels_range", nil
	default:
		return "", fmt.Errorf("sqlitestore: unknown tile-ref kind %q", kind)
	}
}
