// Package mailsyncerr classifies the errors the synchronization core can
// produce, per the error kinds each Façade operation funnels into.
package mailsyncerr

import (
	"errors"
	"fmt"
)

// Kind tags an error with the class of failure that produced it. Only
// KindTransport ever triggers automatic recovery (a single reconnect
// and retry of the originating operation); every other kind surfaces
// to the caller unretried.
type Kind int

const (
	// KindInvalidArgument marks a missing/malformed parameter, an
	// out-of-range session_id, or an unparseable UID list.
	KindInvalidArgument Kind = iota
	// KindNotConnected marks an operation that referenced a session_id
	// whose pool slot is vacant.
	KindNotConnected
	// KindTransport marks a ConnectionLost or I/O failure from the IMAP
	// layer. May trigger one reconnect+retry.
	KindTransport
	// KindProtocol marks an IMAP command rejected by the server (e.g.
	// SELECT of a nonexistent mailbox). Never retried.
	KindProtocol
	// KindStorage marks a cache store operation failure. Never retried.
	KindStorage
	// KindParse marks a body-parser failure to recover a part; the
	// affected message is still inserted with best-effort fields.
	KindParse
	// KindNotFound marks a requested UID or mailbox absent from the
	// cache on a read-only endpoint.
	KindNotFound
)

// String renders the kind the way it should appear in logs and in the
// envelope's message field.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotConnected:
		return "not_connected"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindStorage:
		return "storage"
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and the name of the
// operation that produced it, so logs can always report both.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error for operation op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error carrying the given kind. Used by
// callers that need to branch on classification, e.g. the retry layer
// deciding whether to re-drive an operation.
func Is(err error, kind Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindStorage for
// errors that were never classified (treated as non-retryable).
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindStorage
}
