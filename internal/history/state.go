package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileID identifies one export file for the ledger: its base name plus the
// size and content hash at the time it was read. A file whose content
// changes gets a new FileID and imports again.
type FileID struct {
	Path   string
	Size   int64
	SHA256 string
}

// IdentifyFile fingerprints the file at path.
func IdentifyFile(path string) (FileID, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileID{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return FileID{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return FileID{}, err
	}
	return FileID{
		Path:   filepath.Base(path),
		Size:   info.Size(),
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

const stateSchema = `CREATE TABLE IF NOT EXISTS imported_files (
	path        TEXT PRIMARY KEY,
	size        INTEGER NOT NULL,
	sha256      TEXT NOT NULL,
	imported_at TIMESTAMP NOT NULL
)`

// StateDB is the ledger of already-imported export files, one SQLite row per
// file path.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the ledger at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}
	return &StateDB{db: db}, nil
}

// Seen reports whether id's path is ledgered with the same size and hash.
// A row with a different fingerprint means the export was rewritten since
// the last run, and the file counts as new.
func (s *StateDB) Seen(id FileID) (bool, error) {
	var size int64
	var hash string
	err := s.db.QueryRow(
		`SELECT size, sha256 FROM imported_files WHERE path = ?`, id.Path,
	).Scan(&size, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return size == id.Size && hash == id.SHA256, nil
}

// Record upserts the ledger row for id's path.
func (s *StateDB) Record(id FileID) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, size, sha256, imported_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE
		 SET size = excluded.size, sha256 = excluded.sha256,
		     imported_at = excluded.imported_at`,
		id.Path, id.Size, id.SHA256, time.Now().UTC())
	return err
}

// Close closes the ledger database.
func (s *StateDB) Close() error {
	return s.db.Close()
}
