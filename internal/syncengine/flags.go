package syncengine

import (
	"math"

	"github.com/tychobrouwer/mailsyncd/internal/imapsession"
	"github.com/tychobrouwer/mailsyncd/internal/mailsyncerr"
)

// syncFlags runs the Flag Sync Engine (§4.5): FETCH 1:* FLAGS, diff
// against the cache, write back whatever differs, and return the
// changed UIDs. Equality is string equality on the already-canonical
// form the Cache Store persists.
func (e *Engine) syncFlags(sess session, username, address, path string) ([]uint32, error) {
	remote, err := sess.Fetch(imapsession.SequenceSet{Start: 1, End: math.MaxUint32}, math.MaxUint32, imapsession.FetchFlags)
	if err != nil {
		return nil, err
	}

	local, err := e.store.FlagsSnapshot(username, address, path)
	if err != nil {
		return nil, mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
	}
	localFlags := make(map[uint32]string, len(local))
	for _, f := range local {
		localFlags[f.UID] = f.Flags
	}

	var changed []uint32
	for _, m := range remote {
		canonical := imapsession.CanonicalFlags(m.Flags)
		existing, ok := localFlags[m.UID]
		if !ok || existing == canonical {
			continue
		}
		if err := e.store.UpdateFlags(username, address, path, m.UID, canonical); err != nil {
			return changed, mailsyncerr.New(mailsyncerr.KindStorage, "update_mailbox", err)
		}
		changed = append(changed, m.UID)
	}

	return changed, nil
}

// ModifyFlags is the client-initiated flag write path (§4.5's
// "Client-initiated flag change"): it issues UID STORE, captures the
// server's authoritative post-STORE flag list, canonicalizes it, and
// persists it. Returns the canonical flag string actually stored.
func (e *Engine) ModifyFlags(sess session, username, address, path string, uid uint32, flags []string, add bool) (string, error) {
	if _, err := sess.Select(path); err != nil {
		return "", err
	}

	canonical, err := sess.UIDStore(uid, flags, add)
	if err != nil {
		return "", err
	}

	if err := e.store.UpdateFlags(username, address, path, uid, canonical); err != nil {
		return "", mailsyncerr.New(mailsyncerr.KindStorage, "modify_flags", err)
	}

	return canonical, nil
}
