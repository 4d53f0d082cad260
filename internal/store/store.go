// Package store keeps versioned policy documents in SQLite.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/npipolicy/internal/adaptive"
	"github.com/ppiankov/npipolicy/internal/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS policy_versions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id  TEXT NOT NULL UNIQUE,
	parent_id   TEXT,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	document    TEXT NOT NULL,
	hash        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES policy_versions(version_id)
);

CREATE INDEX IF NOT EXISTS policy_versions_name ON policy_versions(name, seq);
`

// Kind tells which document type a version holds.
type Kind string

const (
	KindFixed    Kind = "fixed"
	KindAdaptive Kind = "adaptive"
)

// ErrNotFound is returned when no version matches.
var ErrNotFound = errors.New("policy version not found")

// Record is one stored version of a named policy.
type Record struct {
	VersionID string    `json:"version_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Document  string    `json:"document"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Policy decodes a fixed policy record.
func (r Record) Policy() (*policy.Policy, error) {
	if r.Kind != KindFixed {
		return nil, fmt.Errorf("version %s holds a %s policy", r.VersionID, r.Kind)
	}
	return policy.Decode([]byte(r.Document))
}

// Adaptive decodes an adaptive policy record.
func (r Record) Adaptive(opts ...adaptive.Option) (*adaptive.Policy, error) {
	if r.Kind != KindAdaptive {
		return nil, fmt.Errorf("version %s holds a %s policy", r.VersionID, r.Kind)
	}
	return adaptive.Decode([]byte(r.Document), opts...)
}

// Store manages policy versions in SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger logs writes to l.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.Named("store")
		}
	}
}

// Open opens a SQLite database and runs migrations.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := &Store{db: db, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutPolicy stores a new version of a fixed policy under name.
func (s *Store) PutPolicy(name string, p *policy.Policy) (Record, error) {
	return s.Put(name, KindFixed, p.Document())
}

// PutAdaptive stores a new version of an adaptive policy under name.
func (s *Store) PutAdaptive(name string, p *adaptive.Policy) (Record, error) {
	return s.Put(name, KindAdaptive, p.Document())
}

// Put stores doc as the next version of name. The previous latest version
// becomes its parent. Storing a document identical to the latest version
// returns that version unchanged.
func (s *Store) Put(name string, kind Kind, doc any) (Record, error) {
	if name == "" {
		return Record{}, errors.New("policy name is empty")
	}
	if kind != KindFixed && kind != KindAdaptive {
		return Record{}, fmt.Errorf("unknown policy kind %q", kind)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return Record{}, fmt.Errorf("marshal document: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(sum[:])

	tx, err := s.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	parent, err := scanRecord(tx.QueryRow(
		`SELECT version_id, parent_id, name, kind, document, hash, created_at
		 FROM policy_versions WHERE name = ? ORDER BY seq DESC LIMIT 1`, name))
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return Record{}, err
	case parent.Hash == hash && parent.Kind == kind:
		return parent, nil
	}

	rec := Record{
		VersionID: uuid.New().String(),
		ParentID:  parent.VersionID,
		Name:      name,
		Kind:      kind,
		Document:  string(data),
		Hash:      hash,
		CreatedAt: s.now().UTC(),
	}
	var parentID any
	if rec.ParentID != "" {
		parentID = rec.ParentID
	}
	_, err = tx.Exec(
		`INSERT INTO policy_versions (version_id, parent_id, name, kind, document, hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentID, rec.Name, string(rec.Kind), rec.Document, rec.Hash,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("policy version stored",
		zap.String("name", name),
		zap.String("kind", string(kind)),
		zap.String("version", rec.VersionID),
		zap.String("parent", rec.ParentID))
	return rec, nil
}

// Latest returns the newest version of name.
func (s *Store) Latest(name string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRow(
		`SELECT version_id, parent_id, name, kind, document, hash, created_at
		 FROM policy_versions WHERE name = ? ORDER BY seq DESC LIMIT 1`, name))
	if err != nil {
		return Record{}, fmt.Errorf("latest %s: %w", name, err)
	}
	return rec, nil
}

// Version returns a specific version by id.
func (s *Store) Version(id string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRow(
		`SELECT version_id, parent_id, name, kind, document, hash, created_at
		 FROM policy_versions WHERE version_id = ?`, id))
	if err != nil {
		return Record{}, fmt.Errorf("version %s: %w", id, err)
	}
	return rec, nil
}

// Versions returns every version of name, oldest first.
func (s *Store) Versions(name string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, name, kind, document, hash, created_at
		 FROM policy_versions WHERE name = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return out, nil
}

// Names returns every stored policy name in sorted order.
func (s *Store) Names() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT name FROM policy_versions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var parentID sql.NullString
	var kind, created string
	err := row.Scan(&rec.VersionID, &parentID, &rec.Name, &kind, &rec.Document, &rec.Hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan version: %w", err)
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	rec.Kind = Kind(kind)
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Record{}, fmt.Errorf("version %s: parse created_at: %w", rec.VersionID, err)
	}
	return rec, nil
}
