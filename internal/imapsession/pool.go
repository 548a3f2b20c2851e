// Package imapsession implements the IMAP Session Pool: it owns the
// live TLS-backed IMAP connections, serializes access per session, and
// handles reconnection. Built on github.com/emersion/go-imap/v2 and
// github.com/emersion/go-imap/v2/imapclient, the same stack the
// teacher's single-account email.Client wraps — generalized here to a
// pool addressed by dense session_id rather than a fixed account name.
package imapsession

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tychobrouwer/mailsyncd/internal/mailsyncerr"
)

// Credentials identifies and authenticates a single IMAP account.
type Credentials struct {
	Username string
	Password string
	Address  string
	Port     uint16
	TLS      bool
}

func (c Credentials) key() string {
	return c.Username + "@" + c.Address
}

// Info is the public, read-only view of a pooled session returned by
// list_sessions.
type Info struct {
	ID       int
	Username string
	Address  string
	Port     uint16
}

// Pool holds the vector of live sessions, indexed by session_id. A
// single mutex guards the index structures only — no I/O ever happens
// while it is held; each Session holds its own mutex around IMAP
// round-trips.
type Pool struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[int]*Session
	byKey    map[string]int
	nextID   int
}

// NewPool creates an empty session pool.
func NewPool(logger *slog.Logger) *Pool {
	return &Pool{
		logger:   logger,
		sessions: make(map[int]*Session),
		byKey:    make(map[string]int),
	}
}

// Connect dials, TLS-wraps, and authenticates a new IMAP session for
// creds, returning its session_id. If (username, address) is already
// pooled, the existing id is returned without redialing — this is
// testable property 5.
func (p *Pool) Connect(creds Credentials) (int, error) {
	key := creds.key()

	p.mu.Lock()
	if id, ok := p.byKey[key]; ok {
		p.mu.Unlock()
		return id, nil
	}
	p.mu.Unlock()

	sess := newSession(creds, p.logger.With("username", creds.Username, "address", creds.Address))
	if err := sess.connect(); err != nil {
		return 0, mailsyncerr.New(mailsyncerr.KindTransport, "connect", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another caller may have raced us to Connect for the same key
	// between the unlock above and dialing; the registry lock is never
	// held across I/O; prefer keeping the pre-existing session.
	if id, ok := p.byKey[key]; ok {
		go sess.close()
		return id, nil
	}

	id := p.nextID
	p.nextID++
	p.sessions[id] = sess
	p.byKey[key] = id
	return id, nil
}

// Get returns the pooled session for id, or a classified NotConnected
// error if the slot is vacant.
func (p *Pool) Get(id int) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[id]
	if !ok {
		return nil, mailsyncerr.New(mailsyncerr.KindNotConnected, "get", fmt.Errorf("no session %d", id))
	}
	return sess, nil
}

// List enumerates pooled sessions as (id, username, address, port).
func (p *Pool) List() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Info, 0, len(p.sessions))
	for id, sess := range p.sessions {
		out = append(out, Info{ID: id, Username: sess.creds.Username, Address: sess.creds.Address, Port: sess.creds.Port})
	}
	return out
}

// Disconnect logs out and drops session id from the pool.
func (p *Pool) Disconnect(id int) error {
	p.mu.Lock()
	sess, ok := p.sessions[id]
	if !ok {
		p.mu.Unlock()
		return mailsyncerr.New(mailsyncerr.KindNotConnected, "disconnect", fmt.Errorf("no session %d", id))
	}
	delete(p.sessions, id)
	delete(p.byKey, sess.creds.key())
	p.mu.Unlock()

	return sess.close()
}
