package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// ErrNotFound means no generator exists with the requested id.
var ErrNotFound = errors.New("store: generator not found")

// Store persists serialized generators in a SQL database, keyed by UUID.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// GeneratorInfo is the metadata row for a persisted generator.
type GeneratorInfo struct {
	ID        string
	CreatedAt time.Time
	Epochs    int
	Radius    int
	Mode      string
}

// Open connects to the database and creates the schema if needed.
func Open(dialectType DialectType, dsn string) (*Store, error) {
	dialect := NewDialect(dialectType)
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: init statement failed: %w", err)
		}
	}
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS generators (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		epochs INTEGER NOT NULL,
		radius INTEGER NOT NULL,
		mode TEXT NOT NULL,
		payload %s NOT NULL
	)`, s.dialect.BlobType())
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: migration failed: %w", err)
	}
	return nil
}

// Save serializes the generator and inserts it under a fresh UUID, which it
// returns.
func (s *Store) Save(g *wfc.Generator, codec Codec) (string, error) {
	payload, err := codec.Encode(g)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	query := fmt.Sprintf(
		"INSERT INTO generators (id, created_at, epochs, radius, mode, payload) VALUES (%s, %s, %s, %s, %s, %s)",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
		s.dialect.Placeholder(4), s.dialect.Placeholder(5), s.dialect.Placeholder(6),
	)
	_, err = s.db.Exec(query, id, time.Now().UTC(), g.Weights.Epochs, g.Radius, g.Mode.String(), payload)
	if err != nil {
		return "", fmt.Errorf("store: saving generator: %w", err)
	}
	return id, nil
}

// Load fetches and decodes a generator by id.
func (s *Store) Load(id string, codec Codec) (*wfc.Generator, error) {
	query := fmt.Sprintf("SELECT payload FROM generators WHERE id = %s", s.dialect.Placeholder(1))
	var payload []byte
	err := s.db.QueryRow(query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading generator: %w", err)
	}
	return codec.Decode(payload)
}

// List returns metadata for all persisted generators, newest first.
func (s *Store) List() ([]GeneratorInfo, error) {
	rows, err := s.db.Query("SELECT id, created_at, epochs, radius, mode FROM generators ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("store: listing generators: %w", err)
	}
	defer rows.Close()

	var infos []GeneratorInfo
	for rows.Next() {
		var info GeneratorInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.Epochs, &info.Radius, &info.Mode); err != nil {
			return nil, fmt.Errorf("store: scanning generator row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes a generator by id.
func (s *Store) Delete(id string) error {
	query := fmt.Sprintf("DELETE FROM generators WHERE id = %s", s.dialect.Placeholder(1))
	res, err := s.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("store: deleting generator: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
