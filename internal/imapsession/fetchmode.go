package imapsession

import "github.com/emersion/go-imap/v2"

// FetchMode is the closed set of item-list shorthands the Façade and
// Sync Engine request. ALL is what the sync engine uses to pull a full
// row for newly-discovered UIDs; UID and FLAGS back the cheap probe
// and flag-sync passes.
type FetchMode int

const (
	FetchAll FetchMode = iota
	FetchEnvelope
	FetchBody
	FetchUID
	FetchFlags
)

// options maps a FetchMode to the go-imap/v2 item list it requests.
func (m FetchMode) options() *imap.FetchOptions {
	switch m {
	case FetchAll:
		return &imap.FetchOptions{
			UID:      true,
			Flags:    true,
			Envelope: true,
			BodySection: []*imap.FetchItemBodySection{
				{Peek: true},
			},
		}
	case FetchEnvelope:
		return &imap.FetchOptions{Envelope: true}
	case FetchBody:
		return &imap.FetchOptions{
			BodySection: []*imap.FetchItemBodySection{
				{Peek: true},
			},
		}
	case FetchUID:
		return &imap.FetchOptions{UID: true}
	case FetchFlags:
		return &imap.FetchOptions{Flags: true}
	default:
		return &imap.FetchOptions{UID: true}
	}
}
