package facade

import (
	"github.com/tychobrouwer/mailsyncd/internal/imapsession"
	"github.com/tychobrouwer/mailsyncd/internal/mailsyncerr"
)

// GetMailboxes returns the cached mailbox list for sessionID; if the
// cache is empty (first call for this account) it falls back to LIST
// and persists the result.
func (f *Facade) GetMailboxes(sessionID int) ([]string, error) {
	sess, err := f.pool.Get(sessionID)
	if err != nil {
		return nil, err
	}

	info, err := f.sessionInfo(sessionID)
	if err != nil {
		return nil, err
	}

	paths, err := f.store.ListMailboxes(info.Username, info.Address)
	if err != nil {
		return nil, mailsyncerr.New(mailsyncerr.KindStorage, "get_mailboxes", err)
	}
	if len(paths) > 0 {
		return paths, nil
	}

	return f.refreshMailboxes(sess, info.Username, info.Address)
}

// UpdateMailboxes re-runs LIST and reconciles the Mailbox table: paths
// the server no longer reports are deleted (cascading to their
// messages), paths newly seen are inserted.
func (f *Facade) UpdateMailboxes(sessionID int) ([]string, error) {
	sess, err := f.pool.Get(sessionID)
	if err != nil {
		return nil, err
	}

	info, err := f.sessionInfo(sessionID)
	if err != nil {
		return nil, err
	}

	return f.refreshMailboxes(sess, info.Username, info.Address)
}

func (f *Facade) refreshMailboxes(sess *imapsession.Session, username, address string) ([]string, error) {
	var remote []string
	err := mailsyncerr.RetryOnTransport(func() error {
		var listErr error
		remote, listErr = sess.List()
		return listErr
	}, sess.Reconnect)
	if err != nil {
		return nil, err
	}

	cached, err := f.store.ListMailboxes(username, address)
	if err != nil {
		return nil, mailsyncerr.New(mailsyncerr.KindStorage, "update_mailboxes", err)
	}
	cachedSet := make(map[string]bool, len(cached))
	for _, p := range cached {
		cachedSet[p] = true
	}

	remoteSet := make(map[string]bool, len(remote))
	for _, p := range remote {
		remoteSet[p] = true
		if !cachedSet[p] {
			if err := f.store.PutMailbox(username, address, p); err != nil {
				return nil, mailsyncerr.New(mailsyncerr.KindStorage, "update_mailboxes", err)
			}
		}
	}

	for _, p := range cached {
		if !remoteSet[p] {
			if err := f.store.DeleteMailbox(username, address, p); err != nil {
				return nil, mailsyncerr.New(mailsyncerr.KindStorage, "update_mailboxes", err)
			}
		}
	}

	return remote, nil
}
