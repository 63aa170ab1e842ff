package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultCap        = 1000
	defaultEvictEvery = 10
)

// Store manages request history persistence with bounded retention.
// Inserts are unconditional; every evictEvery-th insert triggers a pass
// that deletes records older than the newest retainCap. Between passes the
// count may transiently exceed the cap by up to evictEvery-1 records.
type Store struct {
	db         *sql.DB
	retainCap  int
	evictEvery int
	inserts    int // insertions since the last eviction pass
}

// NewStore creates a history store backed by a SQLite database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:         db,
		retainCap:  defaultCap,
		evictEvery: defaultEvictEvery,
	}, nil
}

// SetRetention overrides the retention cap and eviction batch size.
func (s *Store) SetRetention(retainCap, evictEvery int) {
	if retainCap > 0 {
		s.retainCap = retainCap
	}
	if evictEvery > 0 {
		s.evictEvery = evictEvery
	}
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id  TEXT,
			method      TEXT NOT NULL,
			url         TEXT NOT NULL,
			status_code INTEGER,
			duration_ns INTEGER,
			size        INTEGER,
			timestamp   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_history_request ON history(request_id);
	`)
	if err != nil {
		return fmt.Errorf("creating history table: %w", err)
	}
	return nil
}

// Add inserts a new history entry and runs the amortized eviction pass
// when due.
func (s *Store) Add(e Entry) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO history (request_id, method, url, status_code, duration_ns, size, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Method, e.URL, e.StatusCode, e.Duration.Nanoseconds(), e.Size,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting history: %w", err)
	}

	s.inserts++
	if s.inserts >= s.evictEvery {
		s.inserts = 0
		if err := s.evict(); err != nil {
			return 0, err
		}
	}

	return result.LastInsertId()
}

// evict removes records older than the newest retainCap entries.
func (s *Store) evict() error {
	_, err := s.db.Exec(`
		DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY timestamp DESC, id DESC LIMIT ?
		)`, s.retainCap)
	if err != nil {
		return fmt.Errorf("evicting history: %w", err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}

// List returns the most recent entries.
func (s *Store) List(limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, request_id, method, url, status_code, duration_ns, size, timestamp
		FROM history
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Search searches history by URL substring.
func (s *Store) Search(query string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, request_id, method, url, status_code, duration_ns, size, timestamp
		FROM history
		WHERE url LIKE ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 50`, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Clear removes all history entries.
func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM history")
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationNs int64
		var ts string
		err := rows.Scan(&e.ID, &e.RequestID, &e.Method, &e.URL, &e.StatusCode,
			&durationNs, &e.Size, &ts)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Duration = time.Duration(durationNs)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
