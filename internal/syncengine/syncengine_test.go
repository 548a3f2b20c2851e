package syncengine

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/emersion/go-imap/v2"

	_ "modernc.org/sqlite"

	"github.com/tychobrouwer/mailsyncd/internal/imapsession"
	"github.com/tychobrouwer/mailsyncd/internal/store"
)

// remoteMsg is one entry of a fakeSession's server-side mailbox state.
type remoteMsg struct {
	Seq   uint32
	UID   uint32
	Flags []string
}

// fakeSession stands in for *imapsession.Session so the reconciliation
// logic can be exercised without a live IMAP connection. Its tail
// probe branch mirrors the real pseudo-range [MAX-1, MAX] by
// recognizing the same sentinel Start the engine sends.
type fakeSession struct {
	remote []remoteMsg
}

func (f *fakeSession) Select(path string) (*imap.SelectData, error) {
	return nil, nil
}

func (f *fakeSession) Fetch(seqSet imapsession.SequenceSet, highest uint32, mode imapsession.FetchMode) ([]imapsession.FetchedMessage, error) {
	if seqSet.Start == math.MaxUint32-1 {
		if len(f.remote) == 0 {
			return nil, nil
		}
		last := f.remote[len(f.remote)-1]
		return []imapsession.FetchedMessage{{UID: last.UID, SeqNum: last.Seq, Flags: last.Flags}}, nil
	}

	var out []imapsession.FetchedMessage
	for _, m := range f.remote {
		if m.Seq >= seqSet.Start && m.Seq <= seqSet.End {
			out = append(out, imapsession.FetchedMessage{UID: m.UID, SeqNum: m.Seq, Flags: m.Flags})
		}
	}
	return out, nil
}

func (f *fakeSession) UIDFetch(uids []uint32, mode imapsession.FetchMode) ([]imapsession.FetchedMessage, error) {
	var out []imapsession.FetchedMessage
	for _, uid := range uids {
		for _, m := range f.remote {
			if m.UID == uid {
				out = append(out, imapsession.FetchedMessage{
					UID:      m.UID,
					SeqNum:   m.Seq,
					Flags:    m.Flags,
					Envelope: &imap.Envelope{Subject: fmt.Sprintf("subj-%d", uid)},
				})
			}
		}
	}
	return out, nil
}

func (f *fakeSession) UIDStore(uid uint32, flags []string, add bool) (string, error) {
	return imapsession.CanonicalFlags(flags), nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := store.NewStore(db, slog.Default())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

// TestUpdateMailbox_S2 is end-to-end scenario S2: the server reports
// UIDs {1,2,3,5}, the cache holds {1,2,3,4}; the sync must report
// new=[5], removed=[4], changed=[], and leave the cache matching the
// server.
func TestUpdateMailbox_S2(t *testing.T) {
	const user, addr, path = "alice", "imap.example.org", "INBOX"

	st := setupTestStore(t)
	if err := st.PutConnection(store.Connection{Username: user, Address: addr, Password: "pw", Port: 993}); err != nil {
		t.Fatalf("put connection: %v", err)
	}
	if err := st.PutMailbox(user, addr, path); err != nil {
		t.Fatalf("put mailbox: %v", err)
	}

	local := make([]store.Message, 0, 4)
	for uid := uint32(1); uid <= 4; uid++ {
		local = append(local, store.Message{UID: uid, SequenceID: uid})
	}
	if err := st.PutMessages(user, addr, path, local); err != nil {
		t.Fatalf("seed messages: %v", err)
	}

	sess := &fakeSession{remote: []remoteMsg{
		{Seq: 1, UID: 1},
		{Seq: 2, UID: 2},
		{Seq: 3, UID: 3},
		{Seq: 4, UID: 5},
	}}

	engine := New(st, slog.Default())
	changes, err := engine.UpdateMailbox(sess, user, addr, path, false)
	if err != nil {
		t.Fatalf("update mailbox: %v", err)
	}

	if got, want := changes.New, []uint32{5}; !uint32SliceEqual(got, want) {
		t.Errorf("new = %v, want %v", got, want)
	}
	if got, want := changes.Removed, []uint32{4}; !uint32SliceEqual(got, want) {
		t.Errorf("removed = %v, want %v", got, want)
	}
	if len(changes.Changed) != 0 {
		t.Errorf("changed = %v, want empty", changes.Changed)
	}

	rows, err := st.MessagesByUIDs(user, addr, path, []uint32{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("messages by uids: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("cache has %d rows, want 4 (uid 4 gone, uid 5 present)", len(rows))
	}
	for _, r := range rows {
		if r.UID == 4 {
			t.Errorf("uid 4 still cached after removal")
		}
	}
}

// TestUpdateMailbox_EmptyMailbox is boundary behavior 8: an empty
// mailbox produces empty diffs and issues no inserts.
func TestUpdateMailbox_EmptyMailbox(t *testing.T) {
	const user, addr, path = "alice", "imap.example.org", "INBOX"

	st := setupTestStore(t)
	if err := st.PutConnection(store.Connection{Username: user, Address: addr, Password: "pw", Port: 993}); err != nil {
		t.Fatalf("put connection: %v", err)
	}
	if err := st.PutMailbox(user, addr, path); err != nil {
		t.Fatalf("put mailbox: %v", err)
	}

	sess := &fakeSession{}
	engine := New(st, slog.Default())

	changes, err := engine.UpdateMailbox(sess, user, addr, path, false)
	if err != nil {
		t.Fatalf("update mailbox: %v", err)
	}
	if len(changes.New) != 0 || len(changes.Changed) != 0 || len(changes.Removed) != 0 {
		t.Errorf("changes = %+v, want all empty", changes)
	}
}

// TestUpdateMailbox_QuickSkipsFlagSync verifies step 5: a quick update
// never reaches the flag-sync pass, even when flags differ.
func TestUpdateMailbox_QuickSkipsFlagSync(t *testing.T) {
	const user, addr, path = "alice", "imap.example.org", "INBOX"

	st := setupTestStore(t)
	if err := st.PutConnection(store.Connection{Username: user, Address: addr, Password: "pw", Port: 993}); err != nil {
		t.Fatalf("put connection: %v", err)
	}
	if err := st.PutMailbox(user, addr, path); err != nil {
		t.Fatalf("put mailbox: %v", err)
	}
	if err := st.PutMessages(user, addr, path, []store.Message{{UID: 1, SequenceID: 1, Flags: ""}}); err != nil {
		t.Fatalf("seed messages: %v", err)
	}

	sess := &fakeSession{remote: []remoteMsg{{Seq: 1, UID: 1, Flags: []string{`\Seen`}}}}
	engine := New(st, slog.Default())

	changes, err := engine.UpdateMailbox(sess, user, addr, path, true)
	if err != nil {
		t.Fatalf("update mailbox: %v", err)
	}
	if changes.Changed != nil {
		t.Errorf("changed = %v, want nil (quick skips flag sync)", changes.Changed)
	}

	rows, err := st.MessagesByUIDs(user, addr, path, []uint32{1})
	if err != nil {
		t.Fatalf("messages by uids: %v", err)
	}
	if rows[0].Flags != "" {
		t.Errorf("flags = %q, want unchanged empty string under quick mode", rows[0].Flags)
	}
}

func uint32SliceEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
