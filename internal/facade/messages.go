package facade

import (
	"fmt"
	"time"

	"github.com/tychobrouwer/mailsyncd/internal/mailsyncerr"
	"github.com/tychobrouwer/mailsyncd/internal/metrics"
	"github.com/tychobrouwer/mailsyncd/internal/store"
	"github.com/tychobrouwer/mailsyncd/internal/syncengine"
)

// FetchByUIDs is a pure cache read: the rows for exactly the given
// UID set. Missing UIDs are simply absent from the result.
func (f *Facade) FetchByUIDs(sessionID int, path string, uids []uint32) ([]store.Message, error) {
	info, err := f.sessionInfo(sessionID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, mailsyncerr.New(mailsyncerr.KindInvalidArgument, "fetch_by_uids", fmt.Errorf("mailbox_path is required"))
	}
	rows, err := f.store.MessagesByUIDs(info.Username, info.Address, path, uids)
	if err != nil {
		return nil, mailsyncerr.New(mailsyncerr.KindStorage, "fetch_by_uids", err)
	}
	return rows, nil
}

// FetchSorted is a cache read returning the half-open rank window
// [start, end) ordered by date_ descending.
func (f *Facade) FetchSorted(sessionID int, path string, start, end int) ([]store.Message, error) {
	info, err := f.sessionInfo(sessionID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, mailsyncerr.New(mailsyncerr.KindInvalidArgument, "fetch_sorted", fmt.Errorf("mailbox_path is required"))
	}
	rows, err := f.store.MessagesSorted(info.Username, info.Address, path, start, end)
	if err != nil {
		return nil, mailsyncerr.New(mailsyncerr.KindStorage, "fetch_sorted", err)
	}
	return rows, nil
}

// FetchByFlag is a cache read filtering on the canonical flag
// substring match, inverted when negate is true.
func (f *Facade) FetchByFlag(sessionID int, path, flag string, negate bool) ([]store.Message, error) {
	info, err := f.sessionInfo(sessionID)
	if err != nil {
		return nil, err
	}
	if path == "" || flag == "" {
		return nil, mailsyncerr.New(mailsyncerr.KindInvalidArgument, "fetch_by_flag", fmt.Errorf("mailbox_path and flag are required"))
	}
	rows, err := f.store.MessagesByFlag(info.Username, info.Address, path, flag, negate)
	if err != nil {
		return nil, mailsyncerr.New(mailsyncerr.KindStorage, "fetch_by_flag", err)
	}
	return rows, nil
}

// UpdateMailbox runs the Sync Engine (§4.4) against sessionID/path,
// retrying once on a transport error per §4.7 — the Façade re-drives
// the whole operation from step 1, never from the point of failure.
func (f *Facade) UpdateMailbox(sessionID int, path string, quick bool) (syncengine.Changes, error) {
	sess, err := f.pool.Get(sessionID)
	if err != nil {
		return syncengine.Changes{}, err
	}
	info, err := f.sessionInfo(sessionID)
	if err != nil {
		return syncengine.Changes{}, err
	}
	if path == "" {
		return syncengine.Changes{}, mailsyncerr.New(mailsyncerr.KindInvalidArgument, "update_mailbox", fmt.Errorf("mailbox_path is required"))
	}

	start := time.Now()
	var changes syncengine.Changes
	err = mailsyncerr.RetryOnTransport(func() error {
		var runErr error
		changes, runErr = f.engine.UpdateMailbox(sess, info.Username, info.Address, path, quick)
		return runErr
	}, sess.Reconnect)
	metrics.UpdateMailboxDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordFacadeError("update_mailbox", mailsyncerr.KindOf(err).String())
	}

	return changes, err
}

// ModifyFlags is the client-initiated flag write path (§4.5).
func (f *Facade) ModifyFlags(sessionID int, path string, uid uint32, flags []string, add bool) (string, error) {
	sess, err := f.pool.Get(sessionID)
	if err != nil {
		return "", err
	}
	info, err := f.sessionInfo(sessionID)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", mailsyncerr.New(mailsyncerr.KindInvalidArgument, "modify_flags", fmt.Errorf("mailbox_path is required"))
	}

	var canonical string
	err = mailsyncerr.RetryOnTransport(func() error {
		var runErr error
		canonical, runErr = f.engine.ModifyFlags(sess, info.Username, info.Address, path, uid, flags, add)
		return runErr
	}, sess.Reconnect)

	return canonical, err
}

// Move issues a server UID MOVE and, on success, deletes the local
// row — it will be re-fetched the next time the destination mailbox
// is updated.
func (f *Facade) Move(sessionID int, path string, uid uint32, destPath string) error {
	sess, err := f.pool.Get(sessionID)
	if err != nil {
		return err
	}
	info, err := f.sessionInfo(sessionID)
	if err != nil {
		return err
	}
	if path == "" || destPath == "" {
		return mailsyncerr.New(mailsyncerr.KindInvalidArgument, "move", fmt.Errorf("mailbox_path and mailbox_path_dest are required"))
	}

	err = mailsyncerr.RetryOnTransport(func() error {
		if _, selErr := sess.Select(path); selErr != nil {
			return selErr
		}
		return sess.UIDMove(uid, destPath)
	}, sess.Reconnect)
	if err != nil {
		return err
	}

	if err := f.store.DeleteMessage(info.Username, info.Address, path, uid); err != nil {
		return mailsyncerr.New(mailsyncerr.KindStorage, "move", err)
	}
	return nil
}
