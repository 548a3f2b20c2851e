package imapsession

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/tychobrouwer/mailsyncd/internal/mailsyncerr"
	"github.com/tychobrouwer/mailsyncd/internal/metrics"
)

// Session is a single authenticated IMAP stream. At most one command
// is in flight at a time: mu is held for the duration of each IMAP
// round-trip, never across a whole Façade operation.
type Session struct {
	creds  Credentials
	logger *slog.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

func newSession(creds Credentials, logger *slog.Logger) *Session {
	return &Session{creds: creds, logger: logger}
}

// connect dials and authenticates. Caller must hold mu, or call it
// before the session is published to the pool.
func (s *Session) connect() error {
	addr := net.JoinHostPort(s.creds.Address, fmt.Sprintf("%d", s.creds.Port))

	var opts imapclient.Options
	if s.creds.TLS {
		opts.TLSConfig = &tls.Config{ServerName: s.creds.Address}
	}

	s.logger.Debug("dialing IMAP server", "address", addr, "tls", s.creds.TLS)

	var client *imapclient.Client
	var err error
	if s.creds.TLS {
		client, err = imapclient.DialTLS(addr, &opts)
	} else {
		client, err = imapclient.DialInsecure(addr, &opts)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	if err := client.Login(s.creds.Username, s.creds.Password).Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("login as %s: %w", s.creds.Username, err)
	}

	s.client = client
	s.logger.Info("IMAP session connected")
	return nil
}

// reconnect tears down any stale connection and redials. Caller must
// hold mu.
func (s *Session) reconnect() error {
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
	return s.connect()
}

// Reconnect is the exported, self-locking form of reconnect, used as
// the Façade-level retry's reconnect callback (§4.7): unlike Select's
// inline retry, the Façade does not hold s.mu between the failing call
// and the reconnect.
func (s *Session) Reconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.reconnect()
	metrics.RecordReconnect(err == nil)
	return err
}

// close logs out and tears down the connection.
func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Logout().Wait()
	_ = s.client.Close()
	s.client = nil
	return err
}

// classify wraps an IMAP command error as KindTransport when it looks
// like a dropped connection or I/O failure, KindProtocol otherwise
// (the command was rejected by the server, e.g. SELECT of a
// nonexistent mailbox).
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransportErr(err) {
		return mailsyncerr.New(mailsyncerr.KindTransport, op, err)
	}
	return mailsyncerr.New(mailsyncerr.KindProtocol, op, err)
}

func isTransportErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// Select runs SELECT for path. Per §4.3, a ConnectionLost/Io failure
// here triggers exactly one reconnect-and-retry — narrower than the
// Façade-level retry (§4.7), which re-drives the whole operation.
func (s *Session) Select(path string) (*imap.SelectData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data *imap.SelectData
	err := mailsyncerr.RetryOnTransport(func() error {
		var selErr error
		data, selErr = s.client.Select(path, nil).Wait()
		if selErr != nil {
			return classify("select", selErr)
		}
		return nil
	}, func() error {
		rerr := s.reconnect()
		metrics.RecordReconnect(rerr == nil)
		return rerr
	})

	return data, err
}

// List runs LIST "" "*" and returns the mailbox paths.
func (s *Session) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mailboxes, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, classify("list", err)
	}

	paths := make([]string, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		paths = append(paths, mbox.Mailbox)
	}
	return paths, nil
}
