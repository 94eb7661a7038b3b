package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// sqliteSchema is executed on every open. IF NOT EXISTS makes that safe.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ns      TEXT NOT NULL,
    name    TEXT NOT NULL,
    version TEXT NOT NULL,
    leaves  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS image_links (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    collection_id INTEGER NOT NULL,
    image_id      INTEGER NOT NULL,
    UNIQUE(collection_id, image_id)
);

CREATE TABLE IF NOT EXISTS node_annotations (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    ns       TEXT NOT NULL,
    image_id INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS node_annotations_image ON node_annotations(image_id);

CREATE TABLE IF NOT EXISTS node_values (
    annotation_id INTEGER NOT NULL,
    idx           INTEGER NOT NULL,
    name          TEXT NOT NULL,
    value         TEXT NOT NULL,
    PRIMARY KEY (annotation_id, idx)
);
`

// SQLite is a Store backed by a local SQLite database in WAL mode.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and creates the schema
// tables if they do not exist.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store needs a database path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// CreateCollection stores a collection annotation.
func (s *SQLite) CreateCollection(ctx context.Context, meta Meta) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (ns, name, version, leaves) VALUES (?, ?, ?, ?)`,
		NamespaceCollection, meta.Name, meta.Version, meta.Leaves)
	if err != nil {
		return 0, fmt.Errorf("insert collection: %w", err)
	}
	return res.LastInsertId()
}

// Collection returns a collection annotation.
func (s *SQLite) Collection(ctx context.Context, id int64) (Meta, bool, error) {
	var meta Meta
	err := s.db.QueryRowContext(ctx,
		`SELECT name, version, leaves FROM collections WHERE id = ?`, id,
	).Scan(&meta.Name, &meta.Version, &meta.Leaves)
	if err == sql.ErrNoRows {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, fmt.Errorf("query collection %d: %w", id, err)
	}
	return meta, true, nil
}

// DeleteCollection removes a collection annotation and its links.
func (s *SQLite) DeleteCollection(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM image_links WHERE collection_id = ?`, id); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return tx.Commit()
}

// LinkImage links a collection to an image.
func (s *SQLite) LinkImage(ctx context.Context, collectionID, imageID int64) error {
	_, ok, err := s.Collection(ctx, collectionID)
	if err != nil {
		return err
	}
	if !ok {
		return collectionNotFound(collectionID)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO image_links (collection_id, image_id) VALUES (?, ?)
		 ON CONFLICT(collection_id, image_id) DO NOTHING`,
		collectionID, imageID)
	if err != nil {
		return fmt.Errorf("link image %d: %w", imageID, err)
	}
	return nil
}

// Images returns the images linked to a collection.
func (s *SQLite) Images(ctx context.Context, collectionID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT image_id FROM image_links WHERE collection_id = ? ORDER BY seq`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddNodeAnnotation attaches a node annotation to an image.
func (s *SQLite) AddNodeAnnotation(ctx context.Context, imageID int64, values []KeyValue) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO node_annotations (ns, image_id) VALUES (?, ?)`, NamespaceNodes, imageID)
	if err != nil {
		return 0, fmt.Errorf("insert annotation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, kv := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO node_values (annotation_id, idx, name, value) VALUES (?, ?, ?, ?)`,
			id, i, kv.Key, kv.Value); err != nil {
			return 0, fmt.Errorf("insert value %q: %w", kv.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// NodeAnnotations returns the node annotations of an image.
func (s *SQLite) NodeAnnotations(ctx context.Context, imageID int64) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.ns, v.name, v.value
		 FROM node_annotations a
		 LEFT JOIN node_values v ON v.annotation_id = a.id
		 WHERE a.image_id = ?
		 ORDER BY a.id, v.idx`, imageID)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	var anns []Annotation
	for rows.Next() {
		var (
			id          int64
			ns          string
			name, value sql.NullString
		)
		if err := rows.Scan(&id, &ns, &name, &value); err != nil {
			return nil, err
		}
		if len(anns) == 0 || anns[len(anns)-1].ID != id {
			anns = append(anns, Annotation{ID: id, Namespace: ns})
		}
		if name.Valid {
			last := &anns[len(anns)-1]
			last.Values = append(last.Values, KeyValue{Key: name.String, Value: value.String})
		}
	}
	return anns, rows.Err()
}

// DeleteNodeAnnotation removes a node annotation from an image.
func (s *SQLite) DeleteNodeAnnotation(ctx context.Context, imageID, annotationID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM node_annotations WHERE id = ? AND image_id = ?`, annotationID, imageID)
	if err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM node_values WHERE annotation_id = ?`, annotationID); err != nil {
		return fmt.Errorf("delete values: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ensure SQLite implements Store.
var _ Store = (*SQLite)(nil)
