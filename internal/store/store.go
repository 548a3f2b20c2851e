// Package store implements the Cache Store: persisted relational state
// for connections, mailboxes, and messages. All mutations are
// transactional so a failed mailbox update never leaves half-inserted
// messages behind.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Store wraps an already-open *sql.DB. It is driver-agnostic: the
// caller opens the connection (mattn/go-sqlite3 in production,
// modernc.org/sqlite in tests that must run without a C toolchain) and
// hands it to NewStore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wraps db, enables foreign key enforcement, and runs the
// schema migration.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS connections (
			username   TEXT NOT NULL,
			password   TEXT NOT NULL,
			address    TEXT NOT NULL,
			port       INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (username, address)
		);

		CREATE TABLE IF NOT EXISTS mailboxes (
			c_username TEXT NOT NULL,
			c_address  TEXT NOT NULL,
			path       TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (c_username, c_address, path),
			FOREIGN KEY (c_username, c_address) REFERENCES connections(username, address) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS messages (
			c_username   TEXT NOT NULL,
			c_address    TEXT NOT NULL,
			m_path       TEXT NOT NULL,
			message_uid  INTEGER NOT NULL,
			sequence_id  INTEGER NOT NULL,
			message_id   TEXT,
			subject      TEXT,
			from_        TEXT,
			sender       TEXT,
			to_          TEXT,
			cc           TEXT,
			bcc          TEXT,
			reply_to     TEXT,
			in_reply_to  TEXT,
			delivered_to TEXT,
			date_        TEXT,
			received     TEXT,
			flags        TEXT NOT NULL DEFAULT '',
			html         TEXT,
			text         TEXT,
			updated_at   TEXT NOT NULL,
			PRIMARY KEY (c_username, c_address, m_path, message_uid),
			FOREIGN KEY (c_username, c_address) REFERENCES connections(username, address) ON DELETE CASCADE,
			FOREIGN KEY (c_username, c_address, m_path) REFERENCES mailboxes(c_username, c_address, path) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_mailbox ON messages(c_username, c_address, m_path);
		CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(c_username, c_address, m_path, date_ DESC);
	`)
	return err
}

// headerFieldLimit is the soft ceiling applied to header-derived string
// columns before insert; SQLite does not enforce VARCHAR lengths, so it
// is applied in Go. html/text are untruncated TEXT blobs.
const headerFieldLimit = 500

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= headerFieldLimit {
		return s
	}
	return string(r[:headerFieldLimit])
}
