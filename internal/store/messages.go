package store

import (
	"database/sql"
	"fmt"
	"time"
)

const messageColumns = `message_uid, sequence_id, message_id, subject, from_, sender, to_, cc, bcc,
	reply_to, in_reply_to, delivered_to, date_, received, flags, html, text, updated_at`

// PutMessages idempotently upserts a batch of messages by their primary
// key (c_username, c_address, m_path, message_uid). The whole batch
// runs in one transaction: a failure partway through rolls back
// entirely, so the cache never observes half-inserted messages.
func (s *Store) PutMessages(username, address, path string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO messages (c_username, c_address, m_path, ` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(c_username, c_address, m_path, message_uid) DO UPDATE SET
			sequence_id = excluded.sequence_id,
			message_id = excluded.message_id,
			subject = excluded.subject,
			from_ = excluded.from_,
			sender = excluded.sender,
			to_ = excluded.to_,
			cc = excluded.cc,
			bcc = excluded.bcc,
			reply_to = excluded.reply_to,
			in_reply_to = excluded.in_reply_to,
			delivered_to = excluded.delivered_to,
			date_ = excluded.date_,
			received = excluded.received,
			flags = excluded.flags,
			html = excluded.html,
			text = excluded.text,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range messages {
		_, err := stmt.Exec(
			username, address, path,
			m.UID, m.SequenceID, m.MessageID, truncate(m.Subject), truncate(m.From), truncate(m.Sender),
			truncate(m.To), truncate(m.Cc), truncate(m.Bcc), truncate(m.ReplyTo), truncate(m.InReplyTo),
			truncate(m.DeliveredTo), m.Date, m.Received, m.Flags, m.HTML, m.Text, now,
		)
		if err != nil {
			return fmt.Errorf("put message uid=%d: %w", m.UID, err)
		}
	}

	return tx.Commit()
}

// DeleteMessage removes a single message row by UID.
func (s *Store) DeleteMessage(username, address, path string, uid uint32) error {
	_, err := s.db.Exec(`
		DELETE FROM messages WHERE c_username = ? AND c_address = ? AND m_path = ? AND message_uid = ?
	`, username, address, path, uid)
	return err
}

// DeleteMessagesTx removes a batch of message rows within an
// already-open transaction, used by the sync engine to apply a
// window's deletions atomically alongside its inserts and updates.
func DeleteMessagesTx(tx *sql.Tx, username, address, path string, uids []uint32) error {
	stmt, err := tx.Prepare(`
		DELETE FROM messages WHERE c_username = ? AND c_address = ? AND m_path = ? AND message_uid = ?
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, uid := range uids {
		if _, err := stmt.Exec(username, address, path, uid); err != nil {
			return fmt.Errorf("delete message uid=%d: %w", uid, err)
		}
	}
	return nil
}

// PutMessagesTx is the transaction-scoped counterpart to PutMessages,
// used when the sync engine needs deletes and inserts in the same
// window transaction.
func PutMessagesTx(tx *sql.Tx, username, address, path string, messages []Message) error {
	stmt, err := tx.Prepare(`
		INSERT INTO messages (c_username, c_address, m_path, ` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(c_username, c_address, m_path, message_uid) DO UPDATE SET
			sequence_id = excluded.sequence_id,
			message_id = excluded.message_id,
			subject = excluded.subject,
			from_ = excluded.from_,
			sender = excluded.sender,
			to_ = excluded.to_,
			cc = excluded.cc,
			bcc = excluded.bcc,
			reply_to = excluded.reply_to,
			in_reply_to = excluded.in_reply_to,
			delivered_to = excluded.delivered_to,
			date_ = excluded.date_,
			received = excluded.received,
			flags = excluded.flags,
			html = excluded.html,
			text = excluded.text,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range messages {
		_, err := stmt.Exec(
			username, address, path,
			m.UID, m.SequenceID, m.MessageID, truncate(m.Subject), truncate(m.From), truncate(m.Sender),
			truncate(m.To), truncate(m.Cc), truncate(m.Bcc), truncate(m.ReplyTo), truncate(m.InReplyTo),
			truncate(m.DeliveredTo), m.Date, m.Received, m.Flags, m.HTML, m.Text, now,
		)
		if err != nil {
			return fmt.Errorf("put message uid=%d: %w", m.UID, err)
		}
	}
	return nil
}

// UpdateSequenceIDsTx updates the sequence_id column for a batch of
// UIDs within an already-open transaction.
func UpdateSequenceIDsTx(tx *sql.Tx, username, address, path string, updates map[uint32]uint32) error {
	stmt, err := tx.Prepare(`
		UPDATE messages SET sequence_id = ?, updated_at = ?
		WHERE c_username = ? AND c_address = ? AND m_path = ? AND message_uid = ?
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for uid, seq := range updates {
		if _, err := stmt.Exec(seq, now, username, address, path, uid); err != nil {
			return fmt.Errorf("update sequence uid=%d: %w", uid, err)
		}
	}
	return nil
}

// UpdateFlags writes the canonical flag string for a single UID. This
// is the write path for both the Flag Sync Engine and client-initiated
// modify_flags.
func (s *Store) UpdateFlags(username, address, path string, uid uint32, flags string) error {
	_, err := s.db.Exec(`
		UPDATE messages SET flags = ?, updated_at = ?
		WHERE c_username = ? AND c_address = ? AND m_path = ? AND message_uid = ?
	`, flags, time.Now().UTC().Format(time.RFC3339), username, address, path, uid)
	return err
}

// UpdateSequenceID updates the sequence_id hint for a single UID.
func (s *Store) UpdateSequenceID(username, address, path string, uid, seq uint32) error {
	_, err := s.db.Exec(`
		UPDATE messages SET sequence_id = ?, updated_at = ?
		WHERE c_username = ? AND c_address = ? AND m_path = ? AND message_uid = ?
	`, seq, time.Now().UTC().Format(time.RFC3339), username, address, path, uid)
	return err
}

func scanMessage(row interface {
	Scan(dest ...any) error
}, username, address, path string) (Message, error) {
	m := Message{Username: username, Address: address, Path: path}
	var updatedAt string
	err := row.Scan(
		&m.UID, &m.SequenceID, &m.MessageID, &m.Subject, &m.From, &m.Sender,
		&m.To, &m.Cc, &m.Bcc, &m.ReplyTo, &m.InReplyTo, &m.DeliveredTo,
		&m.Date, &m.Received, &m.Flags, &m.HTML, &m.Text, &updatedAt,
	)
	if err != nil {
		return Message{}, err
	}
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return m, nil
}

// MessagesByUIDs returns the rows for exactly the given UID set, in no
// particular order. UIDs absent from the cache are simply omitted.
func (s *Store) MessagesByUIDs(username, address, path string, uids []uint32) ([]Message, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE c_username = ? AND c_address = ? AND m_path = ? AND message_uid IN (` + placeholders(len(uids)) + `)`
	args := make([]any, 0, 3+len(uids))
	args = append(args, username, address, path)
	for _, u := range uids {
		args = append(args, u)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows, username, address, path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessagesSorted returns messages ordered by date_ descending, as the
// half-open rank window [start, end).
func (s *Store) MessagesSorted(username, address, path string, start, end int) ([]Message, error) {
	if end <= start {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE c_username = ? AND c_address = ? AND m_path = ?
		ORDER BY date_ DESC
		LIMIT ? OFFSET ?
	`, username, address, path, end-start, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows, username, address, path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessagesByFlag returns messages whose canonical flags string contains
// flag as a substring (negate=false) or does not (negate=true).
func (s *Store) MessagesByFlag(username, address, path, flag string, negate bool) ([]Message, error) {
	op := "LIKE"
	if negate {
		op = "NOT LIKE"
	}

	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE c_username = ? AND c_address = ? AND m_path = ? AND flags `+op+` ?
	`, username, address, path, "%"+flag+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows, username, address, path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessagesInSequenceRange returns the cached rows whose last-known
// sequence_id falls in [start, end], used by the sync engine to find
// messages the server no longer reports for a window it used to fall
// in (a deletion the uid-keyed lookup alone cannot see, since a
// deleted UID is by definition absent from the remote fetch that
// lookup is keyed on).
func (s *Store) MessagesInSequenceRange(username, address, path string, start, end uint32) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE c_username = ? AND c_address = ? AND m_path = ? AND sequence_id BETWEEN ? AND ?
	`, username, address, path, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows, username, address, path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FlagsSnapshot returns every (uid, flags) pair currently cached for a
// mailbox, used by the Flag Sync Engine to diff against the server.
func (s *Store) FlagsSnapshot(username, address, path string) ([]FlagEntry, error) {
	rows, err := s.db.Query(`
		SELECT message_uid, flags FROM messages
		WHERE c_username = ? AND c_address = ? AND m_path = ?
	`, username, address, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FlagEntry
	for rows.Next() {
		var e FlagEntry
		if err := rows.Scan(&e.UID, &e.Flags); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

// Begin exposes the underlying *sql.Tx so the sync engine can bound a
// whole window's deletes/inserts/updates in one transaction.
func (s *Store) Begin() (*sql.Tx, error) {
	return s.db.Begin()
}
