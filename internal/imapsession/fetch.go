package imapsession

import (
	"io"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// FetchedMessage is the normalized result of one FETCH/UID FETCH
// response item, covering every field any FetchMode can populate.
type FetchedMessage struct {
	UID      uint32
	SeqNum   uint32
	Flags    []string
	Envelope *imap.Envelope
	Body     []byte
}

// Fetch runs FETCH over seqSet with the item list mode selects.
// highest is the mailbox's current highest sequence number, used to
// resolve SequenceSet's top-N/range grammar.
func (s *Session) Fetch(seqSet SequenceSet, highest uint32, mode FetchMode) ([]FetchedMessage, error) {
	set, err := seqSet.Build(highest)
	if err != nil {
		return nil, err
	}
	return s.runFetch(set, mode)
}

// UIDFetch runs UID FETCH over the given UIDs with the item list mode
// selects.
func (s *Session) UIDFetch(uids []uint32, mode FetchMode) ([]FetchedMessage, error) {
	uidSet := imap.UIDSet{}
	for _, uid := range uids {
		uidSet.AddNum(imap.UID(uid))
	}
	return s.runFetch(uidSet, mode)
}

func (s *Session) runFetch(set imap.NumSet, mode FetchMode) ([]FetchedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fetchCmd := s.client.Fetch(set, mode.options())

	var out []FetchedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		out = append(out, parseFetchMessage(msg))
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, classify("fetch", err)
	}
	return out, nil
}

func parseFetchMessage(msg *imapclient.FetchMessageData) FetchedMessage {
	fm := FetchedMessage{SeqNum: msg.SeqNum}

	for {
		item := msg.Next()
		if item == nil {
			break
		}

		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			fm.UID = uint32(data.UID)
		case imapclient.FetchItemDataFlags:
			for _, f := range data.Flags {
				fm.Flags = append(fm.Flags, string(f))
			}
		case imapclient.FetchItemDataEnvelope:
			fm.Envelope = data.Envelope
		case imapclient.FetchItemDataBodySection:
			if data.Literal == nil {
				continue
			}
			body, err := io.ReadAll(data.Literal)
			// Drain any remainder so the stream stays in sync even on
			// a short read.
			_, _ = io.Copy(io.Discard, data.Literal)
			if err == nil {
				fm.Body = body
			}
		}
	}

	return fm
}

// CanonicalFlags renders an IMAP flag list as the comma-separated,
// sorted, backslash-stripped token list the Cache Store persists.
func CanonicalFlags(flags []string) string {
	return canonicalizeFlags(flags)
}
