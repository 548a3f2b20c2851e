package store

import (
	"database/sql"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) *Store {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, slog.Default())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func seedConnection(t *testing.T, s *Store) {
	t.Helper()
	if err := s.PutConnection(Connection{Username: "alice", Password: "pw", Address: "imap.example.org", Port: 993}); err != nil {
		t.Fatalf("put connection: %v", err)
	}
}

func TestPutConnection_Upsert(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)

	if err := s.PutConnection(Connection{Username: "alice", Password: "newpw", Address: "imap.example.org", Port: 993}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetConnection("alice", "imap.example.org")
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if got.Password != "newpw" {
		t.Errorf("password = %q, want newpw", got.Password)
	}
}

func TestDeleteConnection_CascadesToMailboxesAndMessages(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	if err := s.PutMailbox("alice", "imap.example.org", "INBOX"); err != nil {
		t.Fatalf("put mailbox: %v", err)
	}
	if err := s.PutMessages("alice", "imap.example.org", "INBOX", []Message{{UID: 1, SequenceID: 1}}); err != nil {
		t.Fatalf("put messages: %v", err)
	}

	if err := s.DeleteConnection("alice", "imap.example.org"); err != nil {
		t.Fatalf("delete connection: %v", err)
	}

	mailboxes, err := s.ListMailboxes("alice", "imap.example.org")
	if err != nil {
		t.Fatalf("list mailboxes: %v", err)
	}
	if len(mailboxes) != 0 {
		t.Errorf("mailboxes after cascade delete = %v, want none", mailboxes)
	}

	msgs, err := s.MessagesByUIDs("alice", "imap.example.org", "INBOX", []uint32{1})
	if err != nil {
		t.Fatalf("messages by uids: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages after cascade delete = %v, want none", msgs)
	}
}

// TestPutMessages_RoundTrip is testable property 6: put_messages then
// messages_by_uids returns, per UID, a row equal to the input modulo
// updated_at.
func TestPutMessages_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	if err := s.PutMailbox("alice", "imap.example.org", "INBOX"); err != nil {
		t.Fatalf("put mailbox: %v", err)
	}

	in := Message{
		Username: "alice", Address: "imap.example.org", Path: "INBOX",
		UID: 5, SequenceID: 5, MessageID: "<abc@example.org>",
		Subject: "hello", From: `[{"name":"Bob","mailbox":"bob","host":"example.org"}]`,
		Flags: "Seen", Text: "hi", HTML: "<p>hi</p>",
	}
	if err := s.PutMessages("alice", "imap.example.org", "INBOX", []Message{in}); err != nil {
		t.Fatalf("put messages: %v", err)
	}

	got, err := s.MessagesByUIDs("alice", "imap.example.org", "INBOX", []uint32{5})
	if err != nil {
		t.Fatalf("messages by uids: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	out := got[0]
	out.UpdatedAt = in.UpdatedAt
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestPutMessages_UpsertUpdatesExisting(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{{UID: 1, SequenceID: 1, Subject: "old"}})
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{{UID: 1, SequenceID: 2, Subject: "new"}})

	got, _ := s.MessagesByUIDs("alice", "imap.example.org", "INBOX", []uint32{1})
	if len(got) != 1 || got[0].Subject != "new" || got[0].SequenceID != 2 {
		t.Errorf("got %+v, want one row with subject=new sequence_id=2", got)
	}
}

func TestDeleteMessage(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{{UID: 1, SequenceID: 1}})

	if err := s.DeleteMessage("alice", "imap.example.org", "INBOX", 1); err != nil {
		t.Fatalf("delete message: %v", err)
	}

	got, _ := s.MessagesByUIDs("alice", "imap.example.org", "INBOX", []uint32{1})
	if len(got) != 0 {
		t.Errorf("got %v, want empty after delete", got)
	}
}

func TestUpdateFlags(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{{UID: 1, SequenceID: 1, Flags: "Answered"}})

	if err := s.UpdateFlags("alice", "imap.example.org", "INBOX", 1, "Answered,Seen"); err != nil {
		t.Fatalf("update flags: %v", err)
	}

	got, _ := s.MessagesByUIDs("alice", "imap.example.org", "INBOX", []uint32{1})
	if len(got) != 1 || got[0].Flags != "Answered,Seen" {
		t.Errorf("flags = %+v, want Answered,Seen", got)
	}
}

// TestMessagesSorted_EmptyWindow is boundary behavior 10:
// fetch_sorted(start=k, end=k) returns the empty list.
func TestMessagesSorted_EmptyWindow(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{{UID: 1, SequenceID: 1, Date: "2024-01-01T00:00:00Z"}})

	got, err := s.MessagesSorted("alice", "imap.example.org", "INBOX", 3, 3)
	if err != nil {
		t.Fatalf("messages sorted: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestMessagesSorted_OrdersByDateDescending(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{
		{UID: 1, SequenceID: 1, Date: "2024-01-01T00:00:00Z"},
		{UID: 2, SequenceID: 2, Date: "2024-03-01T00:00:00Z"},
		{UID: 3, SequenceID: 3, Date: "2024-02-01T00:00:00Z"},
	})

	got, err := s.MessagesSorted("alice", "imap.example.org", "INBOX", 0, 10)
	if err != nil {
		t.Fatalf("messages sorted: %v", err)
	}
	if len(got) != 3 || got[0].UID != 2 || got[1].UID != 3 || got[2].UID != 1 {
		t.Errorf("order = %+v, want UIDs [2,3,1]", got)
	}
}

func TestMessagesByFlag(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{
		{UID: 1, SequenceID: 1, Flags: "Seen"},
		{UID: 2, SequenceID: 2, Flags: "Answered"},
	})

	seen, err := s.MessagesByFlag("alice", "imap.example.org", "INBOX", "Seen", false)
	if err != nil {
		t.Fatalf("messages by flag: %v", err)
	}
	if len(seen) != 1 || seen[0].UID != 1 {
		t.Errorf("seen = %+v, want [UID 1]", seen)
	}

	notSeen, err := s.MessagesByFlag("alice", "imap.example.org", "INBOX", "Seen", true)
	if err != nil {
		t.Fatalf("messages by flag negate: %v", err)
	}
	if len(notSeen) != 1 || notSeen[0].UID != 2 {
		t.Errorf("not seen = %+v, want [UID 2]", notSeen)
	}
}

func TestFlagsSnapshot(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{
		{UID: 1, SequenceID: 1, Flags: "Seen"},
		{UID: 2, SequenceID: 2, Flags: ""},
	})

	snap, err := s.FlagsSnapshot("alice", "imap.example.org", "INBOX")
	if err != nil {
		t.Fatalf("flags snapshot: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("len(snap) = %d, want 2", len(snap))
	}
}

func TestPutMessagesTx_DeletesBeforeInsertsWithinWindow(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMessages("alice", "imap.example.org", "INBOX", []Message{{UID: 4, SequenceID: 4}})

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := DeleteMessagesTx(tx, "alice", "imap.example.org", "INBOX", []uint32{4}); err != nil {
		t.Fatalf("delete tx: %v", err)
	}
	if err := PutMessagesTx(tx, "alice", "imap.example.org", "INBOX", []Message{{UID: 5, SequenceID: 5}}); err != nil {
		t.Fatalf("put tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, _ := s.MessagesByUIDs("alice", "imap.example.org", "INBOX", []uint32{4, 5})
	if len(got) != 1 || got[0].UID != 5 {
		t.Errorf("got %+v, want only UID 5 present", got)
	}
}

func TestListMailboxes_PreservesInsertionOrder(t *testing.T) {
	s := setupTestStore(t)
	seedConnection(t, s)
	s.PutMailbox("alice", "imap.example.org", "INBOX")
	s.PutMailbox("alice", "imap.example.org", "Archive")
	s.PutMailbox("alice", "imap.example.org", "Sent")

	got, err := s.ListMailboxes("alice", "imap.example.org")
	if err != nil {
		t.Fatalf("list mailboxes: %v", err)
	}
	want := []string{"INBOX", "Archive", "Sent"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}
