package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mortgagewatch/internal/quote"
)

// SQLite keeps all three logical partitions in one kv table, keyed by
// (part, k) with the bank and as_of columns denormalized for prefix queries.
type SQLite struct {
	db *sql.DB
}

func Open(path string) (*SQLite, error) {
	if path == "" {
		path = "data/app.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	st := &SQLite{db: db}
	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			part TEXT NOT NULL,
			k TEXT NOT NULL,
			bank TEXT NOT NULL,
			as_of INTEGER NOT NULL,
			record TEXT NOT NULL,
			created_at TEXT,
			PRIMARY KEY (part, k)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_kv_bank ON kv(part, bank, as_of);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLite) CreateQuote(q quote.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO kv (part, k, bank, as_of, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		PartQuotes, quoteKey(q.BankID, q.AsOf), bankKey(q.BankID), q.AsOf, string(data), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create quote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create quote rows: %w", err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *SQLite) GetQuote(bank uuid.UUID, asOf int64) (*quote.Quote, error) {
	row := s.db.QueryRow(`SELECT record FROM kv WHERE part = ? AND k = ?`, PartQuotes, quoteKey(bank, asOf))
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get quote: %w", err)
	}
	var q quote.Quote
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	return &q, nil
}

func (s *SQLite) QuoteHistory(bank uuid.UUID) ([]quote.Quote, error) {
	return s.queryQuotes(PartQuotes, bank)
}

func (s *SQLite) queryQuotes(part string, bank uuid.UUID) ([]quote.Quote, error) {
	rows, err := s.db.Query(
		`SELECT record FROM kv WHERE part = ? AND bank = ? ORDER BY as_of DESC`,
		part, bankKey(bank),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", part, err)
	}
	defer rows.Close()

	var out []quote.Quote
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", part, err)
		}
		var q quote.Quote
		if err := json.Unmarshal([]byte(data), &q); err != nil {
			return nil, fmt.Errorf("unmarshal quote: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", part, err)
	}
	return out, nil
}

func (s *SQLite) GetCurrent(bank uuid.UUID) (*quote.Quote, error) {
	out, err := s.queryQuotes(PartCurrent, bank)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	if len(out) > 1 {
		// Promotion window or leaked retirement; newest as_of is authoritative.
		log.Printf("store: bank=%s has %d current rows", bankKey(bank), len(out))
	}
	return &out[0], nil
}

func (s *SQLite) PutCurrent(q quote.Quote, expectedAsOf int64) error {
	q.Current = true
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin put current: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var have int64
	row := tx.QueryRow(
		`SELECT COALESCE(MAX(as_of), 0) FROM kv WHERE part = ? AND bank = ?`,
		PartCurrent, bankKey(q.BankID),
	)
	if err := row.Scan(&have); err != nil {
		return fmt.Errorf("read current as_of: %w", err)
	}
	if have != expectedAsOf {
		return ErrConflict
	}

	if _, err := tx.Exec(
		`INSERT INTO kv (part, k, bank, as_of, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(part, k) DO UPDATE SET record=excluded.record, created_at=excluded.created_at`,
		PartCurrent, quoteKey(q.BankID, q.AsOf), bankKey(q.BankID), q.AsOf, string(data), time.Now().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("put current: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put current: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteCurrent(bank uuid.UUID, asOf int64) error {
	_, err := s.db.Exec(
		`DELETE FROM kv WHERE part = ? AND k = ?`,
		PartCurrent, quoteKey(bank, asOf),
	)
	if err != nil {
		return fmt.Errorf("delete current: %w", err)
	}
	return nil
}

func (s *SQLite) GetSubscriber(bank uuid.UUID, user string) (*quote.Subscriber, error) {
	row := s.db.QueryRow(
		`SELECT record FROM kv WHERE part = ? AND k = ?`,
		PartSubscribers, subscriberKey(bank, user),
	)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	var sub quote.Subscriber
	if err := json.Unmarshal([]byte(data), &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscriber: %w", err)
	}
	return &sub, nil
}

func (s *SQLite) SubscribersByBank(bank uuid.UUID) ([]quote.Subscriber, error) {
	rows, err := s.db.Query(
		`SELECT record FROM kv WHERE part = ? AND bank = ? ORDER BY k`,
		PartSubscribers, bankKey(bank),
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var out []quote.Subscriber
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		var sub quote.Subscriber
		if err := json.Unmarshal([]byte(data), &sub); err != nil {
			return nil, fmt.Errorf("unmarshal subscriber: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows subscribers: %w", err)
	}
	return out, nil
}

func (s *SQLite) PutSubscriber(sub quote.Subscriber) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscriber: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO kv (part, k, bank, as_of, record, created_at)
		 VALUES (?, ?, ?, 0, ?, ?)
		 ON CONFLICT(part, k) DO UPDATE SET record=excluded.record, created_at=excluded.created_at`,
		PartSubscribers, subscriberKey(sub.BankID, sub.UserID), bankKey(sub.BankID), string(data), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put subscriber: %w", err)
	}
	return nil
}
