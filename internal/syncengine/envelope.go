package syncengine

import (
	"github.com/emersion/go-imap/v2"

	"github.com/tychobrouwer/mailsyncd/internal/mimeparse"
)

// toAddresses converts an ENVELOPE address list to the Cache Store's
// address shape. A group-start/group-end marker (mailbox name set,
// host nil in the wire form) surfaces here as an address with an
// empty host, same as any other.
func toAddresses(addrs []imap.Address) []mimeparse.Address {
	out := make([]mimeparse.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, mimeparse.Address{
			Name:    a.Name,
			Mailbox: a.Mailbox,
			Host:    a.Host,
		})
	}
	return out
}
