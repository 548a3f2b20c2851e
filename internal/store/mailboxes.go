package store

import "time"

// ListMailboxes returns the mailbox paths for a client, ordered by
// insertion time (oldest first).
func (s *Store) ListMailboxes(username, address string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT path FROM mailboxes
		WHERE c_username = ? AND c_address = ?
		ORDER BY rowid ASC
	`, username, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// PutMailbox upserts a mailbox row, used when LIST observes a path for
// the first time. Putting a path that already exists only bumps its
// updated_at.
func (s *Store) PutMailbox(username, address, path string) error {
	_, err := s.db.Exec(`
		INSERT INTO mailboxes (c_username, c_address, path, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(c_username, c_address, path) DO UPDATE SET updated_at = excluded.updated_at
	`, username, address, path, time.Now().UTC().Format(time.RFC3339))
	return err
}

// DeleteMailbox removes a mailbox row, cascading to its messages.
// Called when update_mailboxes discovers the path has disappeared
// from the server's LIST response.
func (s *Store) DeleteMailbox(username, address, path string) error {
	_, err := s.db.Exec(`
		DELETE FROM mailboxes WHERE c_username = ? AND c_address = ? AND path = ?
	`, username, address, path)
	return err
}
