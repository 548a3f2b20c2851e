// Package syncengine implements the Mailbox Sync Engine and Flag Sync
// Engine: the core reconciliation loop that brings the Cache Store's
// message table for one mailbox into agreement with the IMAP server
// and reports the symmetric difference. Grounded on
// original_source/backend/src/inbox_client/update_mailbox.rs, translated
// from its async/mutex control flow to goroutine-free, synchronous Go
// calls against imapsession.Session and store.Store (the Façade is
// what adds concurrency, one call at a time per session).
package syncengine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/emersion/go-imap/v2"

	"github.com/tychobrouwer/mailsyncd/internal/imapsession"
	"github.com/tychobrouwer/mailsyncd/internal/mailsyncerr"
	"github.com/tychobrouwer/mailsyncd/internal/metrics"
	"github.com/tychobrouwer/mailsyncd/internal/mimeparse"
	"github.com/tychobrouwer/mailsyncd/internal/store"
)

// window is the step size of the windowed reconciliation pass (§4.4).
const window = 20

// Changes is the symmetric difference a sync produces: UIDs new to the
// cache, UIDs whose flags changed, and UIDs removed. Sequence-id drift
// is written to the cache but not reported in Changed.
type Changes struct {
	New     []uint32
	Changed []uint32
	Removed []uint32
}

// session is the subset of *imapsession.Session the engine drives. It
// exists so tests can exercise the reconciliation logic against a fake
// IMAP transcript instead of a live TLS connection.
type session interface {
	Select(path string) (*imap.SelectData, error)
	Fetch(seqSet imapsession.SequenceSet, highest uint32, mode imapsession.FetchMode) ([]imapsession.FetchedMessage, error)
	UIDFetch(uids []uint32, mode imapsession.FetchMode) ([]imapsession.FetchedMessage, error)
	UIDStore(uid uint32, flags []string, add bool) (string, error)
}

// Engine runs update_mailbox and its flag-sync sub-step against one
// (session, store) pair. It holds no per-mailbox state between calls.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds an Engine over st, logging through logger.
func New(st *store.Store, logger *slog.Logger) *Engine {
	return &Engine{store: st, logger: logger}
}

// UpdateMailbox runs the 7-step algorithm of §4.4 against sess for
// (username, address, path). When quick is true, step 6 (flag sync) is
// skipped. Returns the new/changed/removed UID sets.
func (e *Engine) UpdateMailbox(sess session, username, address, path string, quick bool) (Changes, error) {
	if _, err := sess.Select(path); err != nil {
		return Changes{}, err
	}

	highestSeq, highestSeqUID, err := e.probeTail(sess)
	if err != nil {
		return Changes{}, err
	}

	if highestSeq == 0 {
		// Empty mailbox: the probe returned nothing. Still run flag
		// sync (a no-op over zero rows) unless quick was requested.
		if !quick {
			if _, err := e.syncFlags(sess, username, address, path); err != nil {
				return Changes{}, err
			}
		}
		return Changes{}, nil
	}

	runLoop := true
	if localSeq, err := e.localSequenceID(username, address, path, highestSeqUID); err == nil {
		if localSeq == highestSeq {
			runLoop = false
		}
	}

	if !runLoop {
		e.logger.Debug("tail matched, skipping windowed reconciliation", "path", path, "highest_seq", highestSeq)
	}

	var newUIDs, removedUIDs []uint32

	if runLoop {
		var winErr error
		newUIDs, removedUIDs, winErr = e.reconcileWindows(sess, username, address, path, highestSeq)
		if winErr != nil {
			return Changes{}, winErr
		}
	}

	changes := Changes{New: newUIDs, Removed: removedUIDs}

	if quick {
		return changes, nil
	}

	changedUIDs, err := e.syncFlags(sess, username, address, path)
	if err != nil {
		return Changes{}, err
	}
	changes.Changed = changedUIDs

	e.logger.Info("mailbox updated", "path", path,
		"new", len(changes.New), "changed", len(changes.Changed), "removed", len(changes.Removed))

	return changes, nil
}

// probeTail fetches UID over the pseudo-range [MAX-1, MAX] (step 1).
// A server with fewer messages than the pseudo-range simply clamps to
// its own tail, per §9's design note; an empty response means an
// empty mailbox, reported as (0, 0) rather than an error.
func (e *Engine) probeTail(sess session) (highestSeq, highestSeqUID uint32, err error) {
	seqSet := imapsession.SequenceSet{Start: math.MaxUint32 - 1, End: math.MaxUint32}

	messages, err := sess.Fetch(seqSet, math.MaxUint32, imapsession.FetchUID)
	if err != nil {
		return 0, 0, err
	}
	if len(messages) == 0 {
		return 0, 0, nil
	}

	last := messages[len(messages)-1]
	return last.SeqNum, last.UID, nil
}

func (e *Engine) localSequenceID(username, address, path string, uid uint32) (uint32, error) {
	rows, err := e.store.MessagesByUIDs(username, address, path, []uint32{uid})
	if err != nil {
		return 0, mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
	}
	if len(rows) == 0 {
		return 0, mailsyncerr.New(mailsyncerr.KindNotFound, "update_mailbox", fmt.Errorf("uid %d not cached", uid))
	}
	return rows[0].SequenceID, nil
}

// reconcileWindows runs step 3: half-open sequence windows of width
// window, from 1 up to highestSeq, each applied in its own
// transaction so a cancellation mid-loop leaves the cache consistent.
func (e *Engine) reconcileWindows(sess session, username, address, path string, highestSeq uint32) (newUIDs, removedUIDs []uint32, err error) {
	end := uint32(0)

	for {
		start := end + 1
		winEnd := end + window
		if start > highestSeq {
			break
		}
		if winEnd > highestSeq {
			winEnd = highestSeq
		}
		end += window

		remote, err := sess.Fetch(imapsession.SequenceSet{Start: start, End: winEnd}, highestSeq, imapsession.FetchUID)
		if err != nil {
			return newUIDs, removedUIDs, err
		}

		remoteSeqByUID := make(map[uint32]uint32, len(remote))
		remoteUIDs := make([]uint32, 0, len(remote))
		for _, m := range remote {
			remoteSeqByUID[m.UID] = m.SeqNum
			remoteUIDs = append(remoteUIDs, m.UID)
		}

		local, err := e.store.MessagesByUIDs(username, address, path, remoteUIDs)
		if err != nil {
			return newUIDs, removedUIDs, mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
		}
		localByUID := make(map[uint32]store.Message, len(local))
		for _, m := range local {
			localByUID[m.UID] = m
		}

		var changedSeq = map[uint32]uint32{}
		var newInWindow []uint32
		for _, uid := range remoteUIDs {
			lm, ok := localByUID[uid]
			if !ok {
				newInWindow = append(newInWindow, uid)
				continue
			}
			if lm.SequenceID != remoteSeqByUID[uid] {
				changedSeq[uid] = remoteSeqByUID[uid]
			}
		}

		// removed: local rows whose last-known sequence_id placed them
		// in this window but that the remote fetch no longer reports.
		// Keyed on cached sequence_id rather than remoteUIDs, since a
		// deleted message is by definition absent from remoteUIDs.
		inRange, err := e.store.MessagesInSequenceRange(username, address, path, start, winEnd)
		if err != nil {
			return newUIDs, removedUIDs, mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
		}
		var removedInWindow []uint32
		for _, lm := range inRange {
			if _, ok := remoteSeqByUID[lm.UID]; !ok {
				removedInWindow = append(removedInWindow, lm.UID)
			}
		}

		if len(newInWindow) == 0 && len(changedSeq) == 0 {
			// Step 4: the tail already matched, subsequent windows
			// cannot contain drift.
			metrics.MailboxWindowsScanned.WithLabelValues("true").Inc()
			break
		}
		metrics.MailboxWindowsScanned.WithLabelValues("false").Inc()

		newUIDs = append(newUIDs, newInWindow...)
		removedUIDs = append(removedUIDs, removedInWindow...)

		var newMessages []store.Message
		if len(newInWindow) > 0 {
			fetched, err := sess.UIDFetch(newInWindow, imapsession.FetchAll)
			if err != nil {
				return newUIDs, removedUIDs, err
			}
			for _, fm := range fetched {
				newMessages = append(newMessages, toStoreMessage(username, address, path, fm))
			}
		}

		if err := e.applyWindow(username, address, path, removedInWindow, newMessages, changedSeq); err != nil {
			return newUIDs, removedUIDs, err
		}
	}

	return newUIDs, removedUIDs, nil
}

// applyWindow commits one window's deletions, insertions, and
// sequence-id updates in a single transaction (§4.4 ordering:
// deletions before insertions, sequence updates last).
func (e *Engine) applyWindow(username, address, path string, removed []uint32, inserted []store.Message, changedSeq map[uint32]uint32) error {
	if len(removed) == 0 && len(inserted) == 0 && len(changedSeq) == 0 {
		return nil
	}

	tx, err := e.store.Begin()
	if err != nil {
		return mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
	}
	defer tx.Rollback()

	if len(removed) > 0 {
		if err := store.DeleteMessagesTx(tx, username, address, path, removed); err != nil {
			return mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
		}
	}
	if len(inserted) > 0 {
		if err := store.PutMessagesTx(tx, username, address, path, inserted); err != nil {
			return mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
		}
	}
	if len(changedSeq) > 0 {
		if err := store.UpdateSequenceIDsTx(tx, username, address, path, changedSeq); err != nil {
			return mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
	}
	return nil
}

// toStoreMessage combines an envelope-bearing fetch result with the
// body parser's output into one Cache Store row. Envelope fields are
// the IMAP server's authoritative view of addressing/subject;
// mimeparse.Parse recovers Date/Received/DeliveredTo/Text/HTML from
// the raw BODY[] payload, which the envelope does not carry.
func toStoreMessage(username, address, path string, fm imapsession.FetchedMessage) store.Message {
	parsed := mimeparse.Parse(string(fm.Body))

	m := store.Message{
		Username:    username,
		Address:     address,
		Path:        path,
		UID:         fm.UID,
		SequenceID:  fm.SeqNum,
		Flags:       imapsession.CanonicalFlags(fm.Flags),
		Date:        parsed.Date,
		Received:    parsed.Received,
		To:          parsed.To,
		DeliveredTo: parsed.DeliveredTo,
		From:        parsed.From,
		Subject:     parsed.Subject,
		MessageID:   parsed.MessageID,
		Text:        parsed.Text,
		HTML:        parsed.HTML,
	}

	if fm.Envelope != nil {
		env := fm.Envelope
		if env.Subject != "" {
			m.Subject = env.Subject
		}
		if env.MessageID != "" {
			m.MessageID = env.MessageID
		}
		if len(env.From) > 0 {
			m.From = mimeparse.AddressListJSON(toAddresses(env.From))
		}
		if len(env.Sender) > 0 {
			m.Sender = mimeparse.AddressListJSON(toAddresses(env.Sender))
		}
		if len(env.To) > 0 {
			m.To = mimeparse.AddressListJSON(toAddresses(env.To))
		}
		if len(env.Cc) > 0 {
			m.Cc = mimeparse.AddressListJSON(toAddresses(env.Cc))
		}
		if len(env.Bcc) > 0 {
			m.Bcc = mimeparse.AddressListJSON(toAddresses(env.Bcc))
		}
		if len(env.ReplyTo) > 0 {
			m.ReplyTo = mimeparse.AddressListJSON(toAddresses(env.ReplyTo))
		}
	}

	return m
}
