package store

import "time"

// PutConnection upserts a connection row, bumping updated_at.
func (s *Store) PutConnection(conn Connection) error {
	_, err := s.db.Exec(`
		INSERT INTO connections (username, password, address, port, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username, address) DO UPDATE SET
			password = excluded.password,
			port = excluded.port,
			updated_at = excluded.updated_at
	`, conn.Username, conn.Password, conn.Address, conn.Port, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetConnection loads a persisted connection by (username, address).
// Returns sql.ErrNoRows if absent.
func (s *Store) GetConnection(username, address string) (Connection, error) {
	var c Connection
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT username, password, address, port, updated_at
		FROM connections WHERE username = ? AND address = ?
	`, username, address).Scan(&c.Username, &c.Password, &c.Address, &c.Port, &updatedAt)
	if err != nil {
		return Connection{}, err
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return c, nil
}

// ListConnections returns every persisted connection, used at startup
// to seed the session pool from a prior run's credentials.
func (s *Store) ListConnections() ([]Connection, error) {
	rows, err := s.db.Query(`SELECT username, password, address, port, updated_at FROM connections`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		var c Connection
		var updatedAt string
		if err := rows.Scan(&c.Username, &c.Password, &c.Address, &c.Port, &updatedAt); err != nil {
			return nil, err
		}
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConnection removes a connection row, cascading to its
// mailboxes and messages. Used by explicit logout-and-forget.
func (s *Store) DeleteConnection(username, address string) error {
	_, err := s.db.Exec(`DELETE FROM connections WHERE username = ? AND address = ?`, username, address)
	return err
}
