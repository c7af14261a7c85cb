package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tutorlab/tutor-rag/pkg/types"
)

// SQLiteBackend persists the vector store snapshot in a SQLite database.
// It satisfies vectorstore.Backend.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteBackend opens dbPath and applies pending migrations
func NewSQLiteBackend(ctx context.Context, dbPath string) (*SQLiteBackend, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteBackend{db: db, path: dbPath}, nil
}

func (s *SQLiteBackend) Name() string {
	return "sqlite"
}

// DB exposes the underlying handle for schema inspection
func (s *SQLiteBackend) DB() *sql.DB {
	return s.db
}

// Path returns the database file location
func (s *SQLiteBackend) Path() string {
	return s.path
}

// Load returns every chunk in insertion order
func (s *SQLiteBackend) Load(ctx context.Context) ([]types.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.text, c.source, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON e.chunk_seq = c.seq
		ORDER BY c.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]types.DocumentChunk, 0)
	for rows.Next() {
		var c types.DocumentChunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Embedding = deserializeVector(blob)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Save replaces the stored collection inside one transaction
func (s *SQLiteBackend) Save(ctx context.Context, chunks []types.DocumentChunk) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	// Restart seq so reloaded order matches slice order
	if _, err = tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'chunks'"); err != nil {
		return fmt.Errorf("failed to reset sequence: %w", err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, "INSERT INTO chunks (id, text, source) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() { _ = chunkStmt.Close() }()

	embStmt, err := tx.PrepareContext(ctx, "INSERT INTO embeddings (chunk_seq, vector, dimension) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare embedding insert: %w", err)
	}
	defer func() { _ = embStmt.Close() }()

	for i := range chunks {
		res, execErr := chunkStmt.ExecContext(ctx, chunks[i].ID, chunks[i].Text, chunks[i].Source)
		if execErr != nil {
			err = fmt.Errorf("failed to insert chunk %s: %w", chunks[i].ID, execErr)
			return err
		}
		seq, idErr := res.LastInsertId()
		if idErr != nil {
			err = idErr
			return err
		}
		if _, err = embStmt.ExecContext(ctx, seq, serializeVector(chunks[i].Embedding), len(chunks[i].Embedding)); err != nil {
			return fmt.Errorf("failed to insert embedding %s: %w", chunks[i].ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
