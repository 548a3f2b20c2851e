// Package facade implements the Operation Façade: the single entry
// point the Request Layer (and any other caller) drives. It owns the
// session pool, the cache store, and the sync engine, validates every
// parameter, and funnels errors through mailsyncerr. Grounded on
// original_source/backend/src/http_server/handle_conn.rs (one method
// per Rust handler, same validate-then-dispatch shape) and on the
// teacher's email.Manager (here the imapsession.Pool plays the role
// Manager's account map plays, keyed by dense session_id instead of a
// configured account name).
package facade

import (
	"fmt"
	"log/slog"

	"github.com/tychobrouwer/mailsyncd/internal/imapsession"
	"github.com/tychobrouwer/mailsyncd/internal/mailsyncerr"
	"github.com/tychobrouwer/mailsyncd/internal/metrics"
	"github.com/tychobrouwer/mailsyncd/internal/store"
	"github.com/tychobrouwer/mailsyncd/internal/syncengine"
)

// Facade is the operation surface described in spec §4.6. It is safe
// for concurrent use: the pool and store each own their own locking,
// and the Facade itself holds no additional mutable state.
type Facade struct {
	pool   *imapsession.Pool
	store  *store.Store
	engine *syncengine.Engine
	logger *slog.Logger
}

// New builds a Facade over an already-open store and a fresh session
// pool.
func New(st *store.Store, logger *slog.Logger) *Facade {
	return &Facade{
		pool:   imapsession.NewPool(logger),
		store:  st,
		engine: syncengine.New(st, logger),
		logger: logger,
	}
}

// SeedConnections reconnects every persisted connection, called once
// at bootstrap so a restart resumes watching previously-seen servers
// without a fresh /login call.
func (f *Facade) SeedConnections() error {
	conns, err := f.store.ListConnections()
	if err != nil {
		return mailsyncerr.New(mailsyncerr.KindStorage, "bootstrap", err)
	}
	for _, c := range conns {
		if _, err := f.Login(c.Username, c.Password, c.Address, c.Port); err != nil {
			f.logger.Warn("failed to restore persisted connection",
				"username", c.Username, "address", c.Address, "error", err)
		}
	}
	return nil
}

// Login returns the existing session_id for (username, address) or
// dials and authenticates a new one, persisting the credentials.
func (f *Facade) Login(username, password, address string, port uint16) (int, error) {
	if username == "" || password == "" || address == "" {
		return 0, mailsyncerr.New(mailsyncerr.KindInvalidArgument, "login", fmt.Errorf("username, password, and address are required"))
	}

	id, err := f.pool.Connect(imapsession.Credentials{
		Username: username,
		Password: password,
		Address:  address,
		Port:     port,
		TLS:      true,
	})
	if err != nil {
		metrics.RecordFacadeError("login", mailsyncerr.KindOf(err).String())
		return 0, err
	}
	metrics.SessionPoolSize.Set(float64(len(f.pool.List())))

	if err := f.store.PutConnection(store.Connection{
		Username: username,
		Password: password,
		Address:  address,
		Port:     port,
	}); err != nil {
		f.logger.Warn("failed to persist connection", "username", username, "address", address, "error", err)
	}

	return id, nil
}

// Logout closes the session and drops it from the pool. Stored
// credentials are retained, per §4.6.
func (f *Facade) Logout(sessionID int) error {
	err := f.pool.Disconnect(sessionID)
	if err != nil {
		metrics.RecordFacadeError("logout", mailsyncerr.KindOf(err).String())
		return err
	}
	metrics.SessionPoolSize.Set(float64(len(f.pool.List())))
	return nil
}

// ListSessions enumerates pooled sessions.
func (f *Facade) ListSessions() []imapsession.Info {
	return f.pool.List()
}

// sessionInfo looks up the pooled Info for sessionID. The pool itself
// only indexes by id for Get(); List() is small enough (one entry per
// live account) that a linear scan here is simpler than adding a
// second index to Pool for a call this infrequent.
func (f *Facade) sessionInfo(sessionID int) (imapsession.Info, error) {
	for _, info := range f.pool.List() {
		if info.ID == sessionID {
			return info, nil
		}
	}
	return imapsession.Info{}, mailsyncerr.New(mailsyncerr.KindNotConnected, "session_info", fmt.Errorf("no session %d", sessionID))
}
