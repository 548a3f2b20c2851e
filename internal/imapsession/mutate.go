package imapsession

import (
	"github.com/emersion/go-imap/v2"
)

// UIDStore issues UID STORE uid +FLAGS/-FLAGS (flags...) and returns
// the server's authoritative post-STORE flag list for that UID,
// canonicalized. This is the only write path for flags other than the
// Flag Sync Engine's own reconciliation pass.
func (s *Session) UIDStore(uid uint32, flags []string, add bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}

	imapFlags := make([]imap.Flag, 0, len(flags))
	for _, f := range flags {
		imapFlags = append(imapFlags, imap.Flag(`\`+f))
	}

	fetchCmd := s.client.Store(uidSet, &imap.StoreFlags{
		Op:     op,
		Silent: false,
		Flags:  imapFlags,
	}, nil)

	var authoritative []string
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		fm := parseFetchMessage(msg)
		authoritative = fm.Flags
	}

	if err := fetchCmd.Close(); err != nil {
		return "", classify("uid_store", err)
	}

	return canonicalizeFlags(authoritative), nil
}

// UIDMove issues UID MOVE uid dest. go-imap/v2's Move already falls
// back to COPY + STORE \Deleted + EXPUNGE when the server doesn't
// advertise the MOVE extension.
func (s *Session) UIDMove(uid uint32, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	if _, err := s.client.Move(uidSet, dest).Wait(); err != nil {
		return classify("uid_mv", err)
	}
	return nil
}
