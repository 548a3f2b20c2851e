package mailsyncerr

// RetryOnTransport runs fn once. If it fails with a KindTransport error,
// reconnect is invoked and fn is re-driven exactly once from the top —
// never from the point of failure, since a session's SELECT state is
// lost on reconnect. Any other error, or a second consecutive failure,
// is returned as-is.
func RetryOnTransport(fn func() error, reconnect func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if !Is(err, KindTransport) {
		return err
	}
	if rerr := reconnect(); rerr != nil {
		return rerr
	}
	return fn()
}
